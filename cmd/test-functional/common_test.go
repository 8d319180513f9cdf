package test_functional

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/pi-kari/animal-share-back/internal/models"
)

// seedSession inserts a user with a live session the way a finished login
// would and returns the raw token.
func seedSession(ctx context.Context, t *testing.T, userID string) string {
	t.Helper()

	_, err := DBConn.Exec(ctx,
		"INSERT INTO users (id, display_name, given_name, family_name, avatar_url, created_at, updated_at) VALUES ($1, $1, '', '', '', now(), now())",
		userID)
	require.Nil(t, err)

	token := uuid.NewString()
	sum := blake2b.Sum256([]byte(token))
	_, err = DBConn.Exec(ctx,
		"INSERT INTO sessions (user_id, token_hash, expires_at, created_at, updated_at) VALUES ($1, $2, $3, now(), now())",
		userID, hex.EncodeToString(sum[:]), time.Now().Add(time.Hour))
	require.Nil(t, err)

	return token
}

func request(ctx context.Context, token string) *resty.Request {
	return resty.New().
		R().
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Token", token).
		SetContext(ctx)
}

func TestPostFlow(t *testing.T) {
	defer FlushDB()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	token := seedSession(ctx, t, "functional-owner")

	u := AppBaseURL
	u.Path = "/api/tags"
	resp, err := request(ctx, token).
		SetResult(&models.TagResp{}).
		SetBody(`{"name": "犬", "category": "分類"}`).
		Post(u.String())
	require.Nil(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	dog := resp.Result().(*models.TagResp)

	u.Path = "/api/posts"
	resp, err = request(ctx, token).
		SetResult(&models.PostResp{}).
		SetBody(models.PostReq{ImageURL: "https://img.example.com/dog.jpg", TagIDs: []uint64{dog.ID}}).
		Post(u.String())
	require.Nil(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	post := resp.Result().(*models.PostResp)

	var count int
	err = DBConn.QueryRow(ctx, "SELECT count(*) FROM post_tags WHERE post_id=$1", post.ID).Scan(&count)
	assert.Nil(t, err)
	assert.Equal(t, 1, count)

	t.Run("filter by tag", func(t *testing.T) {
		resp, err := request(ctx, "").
			SetResult(&[]models.PostResp{}).
			SetQueryParam("tagIds", strconv.FormatUint(dog.ID, 10)).
			Get(u.String())
		assert.Nil(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())

		got := *resp.Result().(*[]models.PostResp)
		require.Len(t, got, 1)
		assert.Equal(t, post.ID, got[0].ID)
	})

	t.Run("zoning hides the post", func(t *testing.T) {
		ex := AppBaseURL
		ex.Path = "/api/exclude-tags"
		resp, err := request(ctx, token).
			SetBody(models.ExcludeTagReq{TagID: &dog.ID}).
			Post(ex.String())
		assert.Nil(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode())

		resp, err = request(ctx, token).
			SetResult(&[]models.PostResp{}).
			Get(u.String())
		assert.Nil(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Empty(t, *resp.Result().(*[]models.PostResp))
	})

	t.Run("policy violation", func(t *testing.T) {
		resp, err := request(ctx, token).
			SetBody(`{"imageUrl": "https://img.example.com/x.jpg", "tagIds": [999999]}`).
			Post(u.String())
		assert.Nil(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	})
}

func TestUnauthenticated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	u := AppBaseURL
	u.Path = "/api/auth/me"
	resp, err := request(ctx, "nope").Get(u.String())
	assert.Nil(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
}
