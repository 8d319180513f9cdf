package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pi-kari/animal-share-back/internal/db"
)

type Content struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	taxonomy *Taxonomy
	feed     *Feed
}

func NewContent(db *gorm.DB, l *zap.SugaredLogger, taxonomy *Taxonomy, feed *Feed) *Content {
	return &Content{
		db:       db,
		logger:   l,
		taxonomy: taxonomy,
		feed:     feed,
	}
}

// CreatePost inserts the post and its tag links as one unit. The tag set must
// pass Taxonomy.ValidateForPost.
func (s *Content) CreatePost(ctx context.Context, ownerID, imageURL string, caption *string, tagIDs []uint64) (*FeedPost, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, errors.Wrap(ErrValidation, "image is required")
	}
	if len(tagIDs) == 0 {
		return nil, errors.Wrap(ErrValidation, "at least one tag is required")
	}
	if caption != nil {
		trimmed := strings.TrimSpace(*caption)
		caption = &trimmed
		if trimmed == "" {
			caption = nil
		}
	}

	ok, err := s.taxonomy.ValidateForPost(ctx, tagIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPolicyViolation
	}

	ids := uniqueIDs(tagIDs)
	model := db.Post{
		UserID:   ownerID,
		ImageURL: imageURL,
		Caption:  caption,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return errors.Wrap(err, "insert post")
		}

		links := make([]db.PostTag, len(ids))
		for i, id := range ids {
			links[i] = db.PostTag{PostID: model.ID, TagID: id}
		}
		if err := tx.Omit(clause.Associations).Create(&links).Error; err != nil {
			return errors.Wrap(err, "insert post tags")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Post created.", "post_id", model.ID, "user_id", ownerID, "tags", len(ids))
	return s.feed.Get(ctx, model.ID, &ownerID)
}

// DeletePost removes the post only when callerID owns it. A false result does
// not say whether the post exists.
func (s *Content) DeletePost(ctx context.Context, postID uint64, callerID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", postID, callerID).
		Delete(&db.Post{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "delete post")
	}
	return res.RowsAffected > 0, nil
}

func (s *Content) GetPost(ctx context.Context, postID uint64, viewerID *string) (*FeedPost, error) {
	return s.feed.Get(ctx, postID, viewerID)
}

func (s *Content) GetPosts(ctx context.Context, q FeedQuery) ([]FeedPost, error) {
	return s.feed.Query(ctx, q)
}

// ListUserPosts pages through one owner's posts. The owner's own zoning does
// not hide their posts from them.
func (s *Content) ListUserPosts(ctx context.Context, ownerID string, limit, offset int) ([]FeedPost, error) {
	return s.feed.Query(ctx, FeedQuery{
		Limit:        limit,
		Offset:       offset,
		ViewerID:     &ownerID,
		OwnerID:      &ownerID,
		IgnoreZoning: true,
	})
}
