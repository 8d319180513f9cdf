package service

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pi-kari/animal-share-back/internal/db"
)

// Favorites stores per-user favorite posts. Adding and removing are idempotent.
type Favorites struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	feed   *Feed
}

func NewFavorites(db *gorm.DB, l *zap.SugaredLogger, feed *Feed) *Favorites {
	return &Favorites{
		db:     db,
		logger: l,
		feed:   feed,
	}
}

func (s *Favorites) AddFavorite(ctx context.Context, userID string, postID uint64) error {
	if err := mustExist(ctx, s.db, &db.Post{}, postID); err != nil {
		return errors.Wrapf(err, "post %d", postID)
	}

	res := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Favorite{UserID: userID, PostID: postID})
	if res.Error != nil {
		return errors.Wrap(res.Error, "insert favorite")
	}
	return nil
}

func (s *Favorites) RemoveFavorite(ctx context.Context, userID string, postID uint64) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&db.Favorite{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete favorite")
	}
	return nil
}

// ListFavorites pages through the user's favorites. Every returned post is
// flagged as favorited.
func (s *Favorites) ListFavorites(ctx context.Context, userID string, limit, offset int) ([]FeedPost, error) {
	posts, err := s.feed.Favorites(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].IsFavorited = true
	}
	return posts, nil
}

// Zoning stores the tags a user never wants to see in their feed.
type Zoning struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewZoning(db *gorm.DB, l *zap.SugaredLogger) *Zoning {
	return &Zoning{
		db:     db,
		logger: l,
	}
}

func (s *Zoning) AddExcludeTag(ctx context.Context, userID string, tagID uint64) error {
	if err := mustExist(ctx, s.db, &db.Tag{}, tagID); err != nil {
		return errors.Wrapf(err, "tag %d", tagID)
	}

	res := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.ExcludeTag{UserID: userID, TagID: tagID})
	if res.Error != nil {
		return errors.Wrap(res.Error, "insert exclude tag")
	}
	return nil
}

func (s *Zoning) RemoveExcludeTag(ctx context.Context, userID string, tagID uint64) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND tag_id = ?", userID, tagID).
		Delete(&db.ExcludeTag{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete exclude tag")
	}
	return nil
}

// SetExcludeTags replaces the user's whole exclusion set in one transaction.
// Unknown tag ids abort the replacement and leave the previous set intact.
func (s *Zoning) SetExcludeTags(ctx context.Context, userID string, tagIDs []uint64) error {
	ids := uniqueIDs(tagIDs)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) != 0 {
			var found int64
			if err := tx.Model(&db.Tag{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
				return errors.Wrap(err, "resolve tags")
			}
			if int(found) != len(ids) {
				return errors.Wrap(ErrNotFound, "unknown tag in exclusion set")
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&db.ExcludeTag{}).Error; err != nil {
			return errors.Wrap(err, "clear exclude tags")
		}
		if len(ids) == 0 {
			return nil
		}

		rows := make([]db.ExcludeTag, len(ids))
		for i, id := range ids {
			rows[i] = db.ExcludeTag{UserID: userID, TagID: id}
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert exclude tags")
		}
		return nil
	})
}

func (s *Zoning) ListExcludeTags(ctx context.Context, userID string) ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.WithContext(ctx).
		Joins("JOIN "+db.TableExcludeTags+" et ON et.tag_id = tags.id").
		Where("et.user_id = ?", userID).
		Order("tags.category").
		Order("tags.name").
		Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list exclude tags")
	}
	return tags, nil
}

func (s *Zoning) ExcludedTagIDs(ctx context.Context, userID string) ([]uint64, error) {
	ids := make([]uint64, 0)
	res := s.db.WithContext(ctx).
		Model(&db.ExcludeTag{}).
		Where("user_id = ?", userID).
		Pluck("tag_id", &ids)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "load exclude tag ids")
	}
	return ids, nil
}

func mustExist(ctx context.Context, gdb *gorm.DB, model interface{}, id uint64) error {
	var count int64
	if err := gdb.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrap(err, "lookup")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
