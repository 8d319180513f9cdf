package service

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pi-kari/animal-share-back/internal/db"
)

func TestCreatePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	dog := f.tag(t, "犬", CategoryClassification)
	face := f.tag(t, "顔", CategoryPart)

	post, err := f.content.CreatePost(ctx, owner, " https://img.example.com/a.jpg ", ptr("  hello  "), []uint64{face, dog, dog})
	require.NoError(t, err)

	assert.NotZero(t, post.ID)
	assert.Equal(t, "https://img.example.com/a.jpg", post.ImageURL)
	require.NotNil(t, post.Caption)
	assert.Equal(t, "hello", *post.Caption)
	assert.Equal(t, owner, post.User.ID)
	assert.False(t, post.IsFavorited)
	assert.ElementsMatch(t, []uint64{dog, face}, tagIDsOf(post.Tags))

	var links int64
	require.NoError(t, f.db.Model(&db.PostTag{}).Where("post_id = ?", post.ID).Count(&links).Error)
	assert.EqualValues(t, 2, links)

	blank, err := f.content.CreatePost(ctx, owner, "https://img.example.com/b.jpg", ptr("   "), []uint64{dog})
	require.NoError(t, err)
	assert.Nil(t, blank.Caption)
}

func TestCreatePostRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	dog := f.tag(t, "犬", CategoryClassification)
	front := f.tag(t, "正面", CategoryAngle)

	tests := []struct {
		name    string
		image   string
		tagIDs  []uint64
		wantErr error
	}{
		{"no image", "  ", []uint64{dog}, ErrValidation},
		{"no tags", "https://img.example.com/a.jpg", nil, ErrValidation},
		{"no classification", "https://img.example.com/a.jpg", []uint64{front}, ErrPolicyViolation},
		{"unknown tag", "https://img.example.com/a.jpg", []uint64{dog, 999}, ErrPolicyViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.content.CreatePost(ctx, owner, tt.image, nil, tt.tagIDs)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&db.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePostRollsBackOnLinkFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	dog := f.tag(t, "犬", CategoryClassification)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_links", func(tx *gorm.DB) {
		if tx.Statement.Table == db.TablePostTags {
			_ = tx.AddError(errors.New("link insert failed"))
		}
	}))

	_, err := f.content.CreatePost(ctx, owner, "https://img.example.com/a.jpg", nil, []uint64{dog})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&db.Post{}).Count(&count).Error)
	assert.Zero(t, count, "post row must not survive a failed link insert")
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	stranger := f.user(t, "stranger")
	dog := f.tag(t, "犬", CategoryClassification)
	postID := f.rawPost(t, owner, time.Minute, dog)
	require.NoError(t, f.favorites.AddFavorite(ctx, stranger, postID))

	deleted, err := f.content.DeletePost(ctx, postID, stranger)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.content.DeletePost(ctx, postID, owner)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.content.DeletePost(ctx, postID, owner)
	require.NoError(t, err)
	assert.False(t, deleted)

	var links, favs int64
	require.NoError(t, f.db.Model(&db.PostTag{}).Count(&links).Error)
	require.NoError(t, f.db.Model(&db.Favorite{}).Count(&favs).Error)
	assert.Zero(t, links)
	assert.Zero(t, favs)

	_, err = f.content.GetPost(ctx, postID, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	// the tag itself stays
	var tags int64
	require.NoError(t, f.db.Model(&db.Tag{}).Where("id = ?", dog).Count(&tags).Error)
	assert.EqualValues(t, 1, tags)
}

func TestTagDeleteRestrictedWhileReferenced(t *testing.T) {
	f := newFixture(t)

	owner := f.user(t, "owner")
	dog := f.tag(t, "犬", CategoryClassification)
	postID := f.rawPost(t, owner, time.Minute, dog)

	assert.Error(t, f.db.Delete(&db.Tag{}, dog).Error)

	require.NoError(t, f.db.Delete(&db.Post{}, postID).Error)
	assert.NoError(t, f.db.Delete(&db.Tag{}, dog).Error)
}

func tagIDsOf(tags []FeedTag) []uint64 {
	ids := make([]uint64, len(tags))
	for i := range tags {
		ids[i] = tags[i].ID
	}
	return ids
}
