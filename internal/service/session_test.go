package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-kari/animal-share-back/internal/db"
)

func TestUpsertUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.sessions.UpsertUser(ctx, Profile{
		Subject:    "google-1",
		Email:      "a@example.com",
		GivenName:  "Taro",
		FamilyName: "Yamada",
	})
	require.NoError(t, err)
	assert.Equal(t, "google-1", user.ID)
	assert.Equal(t, "Taro Yamada", user.DisplayName)
	require.NotNil(t, user.Email)
	assert.Equal(t, "a@example.com", *user.Email)

	user, err = f.sessions.UpsertUser(ctx, Profile{
		Subject:   "google-1",
		Email:     "b@example.com",
		GivenName: "Taro",
		Name:      "taro",
		Picture:   "https://img.example.com/taro.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "taro", user.DisplayName)
	assert.Equal(t, "https://img.example.com/taro.png", user.AvatarURL)
	assert.Equal(t, "b@example.com", *user.Email)

	var count int64
	require.NoError(t, f.db.Model(&db.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = f.sessions.UpsertUser(ctx, Profile{Subject: " "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")

	token, expires, err := f.sessions.Create(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	var stored db.Session
	require.NoError(t, f.db.First(&stored).Error)
	assert.NotEqual(t, token, stored.TokenHash)
	assert.Equal(t, digest(token), stored.TokenHash)

	user, err := f.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, owner, user.ID)

	_, err = f.sessions.Resolve(ctx, token+"x")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.sessions.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, f.sessions.Revoke(ctx, token))
	_, err = f.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	token, _, err := f.sessions.Create(ctx, owner)
	require.NoError(t, err)

	f.sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = f.sessions.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	var count int64
	require.NoError(t, f.db.Model(&db.Session{}).Count(&count).Error)
	assert.Zero(t, count, "expired session is dropped")
}
