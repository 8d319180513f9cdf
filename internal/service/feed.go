package service

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pi-kari/animal-share-back/internal/db"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type (
	// FeedQuery describes one feed page. Include tags are ANDed, exclude tags
	// are ORed, and the viewer's stored exclusions are added to ExcludeTagIDs
	// unless IgnoreZoning is set.
	FeedQuery struct {
		Limit         int
		Offset        int
		IncludeTagIDs []uint64
		ExcludeTagIDs []uint64
		ViewerID      *string
		OwnerID       *string
		IgnoreZoning  bool
	}

	FeedTag struct {
		ID       uint64
		Name     string
		Category string
	}

	FeedUser struct {
		ID          string
		DisplayName string
		GivenName   string
		FamilyName  string
		AvatarURL   string
	}

	FeedPost struct {
		ID          uint64
		ImageURL    string
		Caption     *string
		CreatedAt   time.Time
		User        FeedUser
		Tags        []FeedTag
		IsFavorited bool
	}

	// feedRow is one (post, tag) row of the hydration join. Tag columns are
	// NULL for posts without tags.
	feedRow struct {
		PostID          uint64
		PostImageURL    string
		PostCaption     *string
		PostCreatedAt   time.Time
		UserID          string
		UserDisplayName string
		UserGivenName   string
		UserFamilyName  string
		UserAvatarURL   string
		TagID           *uint64
		TagName         *string
		TagCategory     *string
	}

	idRow struct {
		ID uint64
	}

	ExclusionSource interface {
		ExcludedTagIDs(ctx context.Context, userID string) ([]uint64, error)
	}
)

type Feed struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	zoning ExclusionSource
}

func NewFeed(db *gorm.DB, l *zap.SugaredLogger, zoning *Zoning) *Feed {
	return &Feed{
		db:     db,
		logger: l,
		zoning: zoning,
	}
}

func (q FeedQuery) normalized() FeedQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Query returns one page of posts, newest first, each with all of its tags.
func (s *Feed) Query(ctx context.Context, q FeedQuery) ([]FeedPost, error) {
	q = q.normalized()

	exclude := uniqueIDs(q.ExcludeTagIDs)
	if q.ViewerID != nil && !q.IgnoreZoning {
		zoned, err := s.zoning.ExcludedTagIDs(ctx, *q.ViewerID)
		if err != nil {
			return nil, errors.Wrap(err, "load viewer exclusions")
		}
		exclude = mergeIDs(exclude, zoned)
	}

	page, err := s.buildPageQuery(q, exclude)
	if err != nil {
		return nil, err
	}
	ids, err := s.scanIDs(ctx, page)
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, ids, q.ViewerID)
}

// Get returns a single post in feed shape.
func (s *Feed) Get(ctx context.Context, postID uint64, viewerID *string) (*FeedPost, error) {
	posts, err := s.hydrate(ctx, []uint64{postID}, viewerID)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "post %d", postID)
	}
	return &posts[0], nil
}

// Favorites returns the user's favorited posts, most recently favorited first.
func (s *Feed) Favorites(ctx context.Context, userID string, limit, offset int) ([]FeedPost, error) {
	q := FeedQuery{Limit: limit, Offset: offset}.normalized()

	page := squirrel.
		Select("f.post_id AS id").
		From(db.TableFavorites + " f").
		Where(squirrel.Eq{"f.user_id": userID}).
		OrderBy("f.created_at DESC", "f.post_id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset))

	ids, err := s.scanIDs(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, ids, &userID)
}

// buildPageQuery selects only post ids so limit and offset count posts rather
// than post/tag join rows.
func (s *Feed) buildPageQuery(q FeedQuery, exclude []uint64) (squirrel.SelectBuilder, error) {
	b := squirrel.
		Select("p.id").
		From(db.TablePosts + " p").
		OrderBy("p.created_at DESC", "p.id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset))

	if q.OwnerID != nil {
		b = b.Where(squirrel.Eq{"p.user_id": *q.OwnerID})
	}

	if include := uniqueIDs(q.IncludeTagIDs); len(include) != 0 {
		sub, args, err := squirrel.
			Select("pt.post_id").
			From(db.TablePostTags + " pt").
			Where(squirrel.Eq{"pt.tag_id": include}).
			GroupBy("pt.post_id").
			Having("COUNT(DISTINCT pt.tag_id) = ?", len(include)).
			ToSql()
		if err != nil {
			return b, errors.Wrap(err, "build include filter")
		}
		b = b.Where("p.id IN ("+sub+")", args...)
	}

	if len(exclude) != 0 {
		sub, args, err := squirrel.
			Select("1").
			From(db.TablePostTags + " px").
			Where("px.post_id = p.id").
			Where(squirrel.Eq{"px.tag_id": exclude}).
			ToSql()
		if err != nil {
			return b, errors.Wrap(err, "build exclude filter")
		}
		b = b.Where("NOT EXISTS ("+sub+")", args...)
	}

	return b, nil
}

func (s *Feed) scanIDs(ctx context.Context, b squirrel.SelectBuilder) ([]uint64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]idRow, 0)
	res := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan page ids")
	}

	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	return ids, nil
}

// hydrate loads owner, tags and favorite flag for ids and returns the posts in
// the order of ids. Ids that no longer exist are skipped.
func (s *Feed) hydrate(ctx context.Context, ids []uint64, viewerID *string) ([]FeedPost, error) {
	if len(ids) == 0 {
		return []FeedPost{}, nil
	}

	sql, args, err := squirrel.
		Select(
			"p.id AS post_id",
			"p.image_url AS post_image_url",
			"p.caption AS post_caption",
			"p.created_at AS post_created_at",
			"u.id AS user_id",
			"u.display_name AS user_display_name",
			"u.given_name AS user_given_name",
			"u.family_name AS user_family_name",
			"u.avatar_url AS user_avatar_url",
			"t.id AS tag_id",
			"t.name AS tag_name",
			"t.category AS tag_category",
		).
		From(db.TablePosts + " p").
		Join(db.TableUsers + " u ON u.id = p.user_id").
		LeftJoin(db.TablePostTags + " pt ON pt.post_id = p.id").
		LeftJoin(db.TableTags + " t ON t.id = pt.tag_id").
		Where(squirrel.Eq{"p.id": ids}).
		OrderBy("p.id", "t.category", "t.name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]feedRow, 0)
	res := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan feed rows")
	}

	posts := orderByIDs(collapseFeedRows(rows), ids)

	if viewerID != nil && len(posts) != 0 {
		favorited, err := s.favoritedSet(ctx, *viewerID, ids)
		if err != nil {
			return nil, err
		}
		for i := range posts {
			_, posts[i].IsFavorited = favorited[posts[i].ID]
		}
	}

	return posts, nil
}

func (s *Feed) favoritedSet(ctx context.Context, userID string, postIDs []uint64) (map[uint64]struct{}, error) {
	ids := make([]uint64, 0)
	res := s.db.WithContext(ctx).
		Model(&db.Favorite{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "load favorites")
	}

	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// collapseFeedRows folds the one-row-per-(post, tag) join output into one
// record per post, in first-seen post order. A tag id appears at most once
// per post; posts without tags get an empty, non-nil tag list.
func collapseFeedRows(rows []feedRow) []FeedPost {
	posts := make([]FeedPost, 0)
	index := make(map[uint64]int)
	seenTags := make(map[uint64]map[uint64]struct{})

	for i := range rows {
		r := &rows[i]

		at, ok := index[r.PostID]
		if !ok {
			at = len(posts)
			index[r.PostID] = at
			seenTags[r.PostID] = make(map[uint64]struct{})
			posts = append(posts, FeedPost{
				ID:        r.PostID,
				ImageURL:  r.PostImageURL,
				Caption:   r.PostCaption,
				CreatedAt: r.PostCreatedAt,
				User: FeedUser{
					ID:          r.UserID,
					DisplayName: r.UserDisplayName,
					GivenName:   r.UserGivenName,
					FamilyName:  r.UserFamilyName,
					AvatarURL:   r.UserAvatarURL,
				},
				Tags: []FeedTag{},
			})
		}

		if r.TagID == nil {
			continue
		}
		if _, dup := seenTags[r.PostID][*r.TagID]; dup {
			continue
		}
		seenTags[r.PostID][*r.TagID] = struct{}{}

		tag := FeedTag{ID: *r.TagID}
		if r.TagName != nil {
			tag.Name = *r.TagName
		}
		if r.TagCategory != nil {
			tag.Category = *r.TagCategory
		}
		posts[at].Tags = append(posts[at].Tags, tag)
	}

	return posts
}

func orderByIDs(posts []FeedPost, ids []uint64) []FeedPost {
	byID := make(map[uint64]FeedPost, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}

	out := make([]FeedPost, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out
}
