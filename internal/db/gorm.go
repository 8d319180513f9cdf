package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pi-kari/animal-share-back/internal/config"
)

var Module = fx.Provide(NewGormClient)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// User is keyed by the identity provider subject so that repeated logins
	// land on the same row.
	User struct {
		ID          string  `gorm:"primarykey;size:191"`
		Email       *string `gorm:"uniqueIndex;size:320"`
		GivenName   string
		FamilyName  string
		DisplayName string
		AvatarURL   string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Session struct {
		GormForkedModel
		UserID    string    `gorm:"not null;index;size:191"`
		User      User      `gorm:"constraint:OnDelete:CASCADE"`
		TokenHash string    `gorm:"not null;uniqueIndex;size:64"`
		ExpiresAt time.Time `gorm:"not null;index"`
	}

	Tag struct {
		GormForkedModel
		Name     string `gorm:"not null;size:255;uniqueIndex:uidx_tag_name_category"`
		Category string `gorm:"not null;size:32;index;uniqueIndex:uidx_tag_name_category"`
	}

	Post struct {
		ID        uint64 `gorm:"primarykey"`
		UserID    string `gorm:"not null;index;size:191"`
		User      User   `gorm:"constraint:OnDelete:CASCADE"`
		ImageURL  string `gorm:"not null"`
		Caption   *string
		CreatedAt time.Time `gorm:"not null;index"`
	}

	// PostTag rows go away with their post, but a tag cannot be deleted while
	// any post still references it.
	PostTag struct {
		PostID uint64 `gorm:"primaryKey;autoIncrement:false"`
		Post   Post   `gorm:"constraint:OnDelete:CASCADE"`
		TagID  uint64 `gorm:"primaryKey;autoIncrement:false;index"`
		Tag    Tag    `gorm:"constraint:OnDelete:RESTRICT"`
	}

	Favorite struct {
		UserID    string `gorm:"primaryKey;size:191"`
		User      User   `gorm:"constraint:OnDelete:CASCADE"`
		PostID    uint64 `gorm:"primaryKey;autoIncrement:false;index"`
		Post      Post   `gorm:"constraint:OnDelete:CASCADE"`
		CreatedAt time.Time
	}

	ExcludeTag struct {
		UserID    string `gorm:"primaryKey;size:191"`
		User      User   `gorm:"constraint:OnDelete:CASCADE"`
		TagID     uint64 `gorm:"primaryKey;autoIncrement:false;index"`
		Tag       Tag    `gorm:"constraint:OnDelete:CASCADE"`
		CreatedAt time.Time
	}
)

// Table names used by hand-built queries.
const (
	TableUsers       = "users"
	TableTags        = "tags"
	TablePosts       = "posts"
	TablePostTags    = "post_tags"
	TableFavorites   = "favorites"
	TableExcludeTags = "exclude_tags"
)

func NewGormClient(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	db, err := Open(cfg, l)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Info("Closing database pool.")
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

// Open connects to the configured store and migrates the schema.
func Open(cfg *config.Config, l *zap.SugaredLogger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsDevelopment() {
		level = logger.Info
	}
	newLogger := logger.New(zap.NewStdLog(l.Desugar()), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		Colorful:                  false,
		IgnoreRecordNotFoundError: true,
	})

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	if cfg.DBDriver == config.DriverSQLite {
		// a single connection keeps in-memory databases shared and avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	models := []struct {
		name  string
		model interface{}
	}{
		{"user", &User{}},
		{"session", &Session{}},
		{"tag", &Tag{}},
		{"post", &Post{}},
		{"post tag", &PostTag{}},
		{"favorite", &Favorite{}},
		{"exclude tag", &ExcludeTag{}},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m.model); err != nil {
			return errors.Wrapf(err, "migrate %s", m.name)
		}
	}
	return nil
}
