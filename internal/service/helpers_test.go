package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pi-kari/animal-share-back/internal/config"
	"github.com/pi-kari/animal-share-back/internal/db"
	"github.com/pi-kari/animal-share-back/internal/testutil"
)

type fixture struct {
	db        *gorm.DB
	taxonomy  *Taxonomy
	zoning    *Zoning
	feed      *Feed
	content   *Content
	favorites *Favorites
	sessions  *Sessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := testutil.NewDB(t)
	l := zap.NewNop().Sugar()

	taxonomy := NewTaxonomy(gdb, l)
	zoning := NewZoning(gdb, l)
	feed := NewFeed(gdb, l, zoning)
	return &fixture{
		db:        gdb,
		taxonomy:  taxonomy,
		zoning:    zoning,
		feed:      feed,
		content:   NewContent(gdb, l, taxonomy, feed),
		favorites: NewFavorites(gdb, l, feed),
		sessions:  NewSessions(gdb, l, &config.Config{SessionTTL: time.Hour}),
	}
}

func (f *fixture) user(t *testing.T, id string) string {
	t.Helper()
	return testutil.CreateUser(t, f.db, id).ID
}

func (f *fixture) tag(t *testing.T, name, category string) uint64 {
	t.Helper()
	tag, err := f.taxonomy.GetOrCreate(context.Background(), name, category)
	require.NoError(t, err)
	return tag.ID
}

// rawPost inserts a post directly, bypassing the classification rule, with a
// creation time `age` before a fixed reference point.
func (f *fixture) rawPost(t *testing.T, owner string, age time.Duration, tagIDs ...uint64) uint64 {
	t.Helper()

	post := db.Post{
		UserID:    owner,
		ImageURL:  "https://img.example.com/p.jpg",
		CreatedAt: reference.Add(-age),
	}
	require.NoError(t, f.db.Omit(clause.Associations).Create(&post).Error)
	for _, id := range tagIDs {
		require.NoError(t, f.db.Omit(clause.Associations).Create(&db.PostTag{PostID: post.ID, TagID: id}).Error)
	}
	return post.ID
}

var reference = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func feedIDs(posts []FeedPost) []uint64 {
	ids := make([]uint64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	return ids
}

func ptr(s string) *string {
	return &s
}
