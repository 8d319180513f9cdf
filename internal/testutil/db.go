// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pi-kari/animal-share-back/internal/config"
	"github.com/pi-kari/animal-share-back/internal/db"
)

// Config returns a test configuration backed by a private in-memory SQLite database.
func Config() *config.Config {
	return &config.Config{
		Host:              "127.0.0.1",
		Port:              "0",
		GRPCPort:          "0",
		Env:               config.EnvTest,
		DBDriver:          config.DriverSQLite,
		DBPath:            ":memory:",
		DBMaxOpenConns:    1,
		OAuthClientID:     "client-id",
		OAuthClientSecret: "client-secret",
		OAuthAuthURL:      "https://idp.example.com/authorize",
		OAuthTokenURL:     "https://idp.example.com/token",
		OAuthUserInfoURL:  "https://idp.example.com/userinfo",
		OAuthRedirectURL:  "http://localhost:1323/api/auth/callback",
		FrontendURL:       "http://localhost:3000",
		SessionTTL:        time.Hour,
	}
}

func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(Config(), zap.NewNop().Sugar())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func CreateUser(t testing.TB, gdb *gorm.DB, id string) db.User {
	t.Helper()

	u := db.User{ID: id, DisplayName: id}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}
