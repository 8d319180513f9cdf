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

const (
	CategoryClassification = "分類"
	CategoryAngle          = "角度"
	CategoryPart           = "部位"
	CategoryOther          = "その他"
)

var Categories = []string{CategoryClassification, CategoryAngle, CategoryPart, CategoryOther}

var seedTaxonomy = []struct {
	category string
	names    []string
}{
	{CategoryClassification, []string{"犬", "猫", "うさぎ", "ハムスター", "鳥", "魚", "爬虫類", "両生類", "昆虫"}},
	{CategoryAngle, []string{"正面", "横", "後ろ", "上", "下", "斜め"}},
	{CategoryPart, []string{"顔", "目", "鼻", "耳", "口", "足", "しっぽ"}},
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

type Taxonomy struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewTaxonomy(db *gorm.DB, l *zap.SugaredLogger) *Taxonomy {
	return &Taxonomy{
		db:     db,
		logger: l,
	}
}

func (s *Taxonomy) ListAll(ctx context.Context) ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.WithContext(ctx).Order("category").Order("name").Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list tags")
	}
	return tags, nil
}

func (s *Taxonomy) ListByCategory(ctx context.Context, category string) ([]db.Tag, error) {
	if !IsValidCategory(category) {
		return nil, errors.Wrapf(ErrInvalidCategory, "category %q", category)
	}

	tags := make([]db.Tag, 0)
	res := s.db.WithContext(ctx).Where("category = ?", category).Order("name").Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list tags by category")
	}
	return tags, nil
}

// GetOrCreate returns the tag with exactly this name and category, creating it
// when missing. A concurrent creator of the same pair loses on the unique index
// and reads back the winner's row.
func (s *Taxonomy) GetOrCreate(ctx context.Context, name, category string) (*db.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Wrap(ErrValidation, "tag name is empty")
	}
	if !IsValidCategory(category) {
		return nil, errors.Wrapf(ErrInvalidCategory, "category %q", category)
	}

	tag, err := s.find(ctx, name, category)
	if err != nil || tag != nil {
		return tag, err
	}

	model := db.Tag{
		Name:     name,
		Category: category,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "create tag")
	}
	if res.RowsAffected == 1 && model.ID != 0 {
		return &model, nil
	}

	tag, err = s.find(ctx, name, category)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, errors.Errorf("tag %s:%s vanished after conflicting insert", category, name)
	}
	return tag, nil
}

func (s *Taxonomy) find(ctx context.Context, name, category string) (*db.Tag, error) {
	tags := make([]db.Tag, 0, 1)
	res := s.db.WithContext(ctx).
		Where("name = ? AND category = ?", name, category).
		Limit(1).
		Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find tag")
	}
	if len(tags) == 0 {
		return nil, nil
	}
	return &tags[0], nil
}

// ValidateForPost reports whether tagIDs is an acceptable tag set for a new
// post: non-empty, fully resolvable, with at least one classification tag.
func (s *Taxonomy) ValidateForPost(ctx context.Context, tagIDs []uint64) (bool, error) {
	for _, id := range tagIDs {
		if id == 0 {
			return false, nil
		}
	}
	ids := uniqueIDs(tagIDs)
	if len(ids) == 0 {
		return false, nil
	}

	tags := make([]db.Tag, 0, len(ids))
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tags)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "resolve tags")
	}
	if len(tags) != len(ids) {
		return false, nil
	}

	for i := range tags {
		if tags[i].Category == CategoryClassification {
			return true, nil
		}
	}
	return false, nil
}

// Seed makes sure the built-in taxonomy exists. Safe to run on every start.
func (s *Taxonomy) Seed(ctx context.Context) error {
	count := 0
	for _, group := range seedTaxonomy {
		for _, name := range group.names {
			if _, err := s.GetOrCreate(ctx, name, group.category); err != nil {
				return errors.Wrapf(err, "seed %s:%s", group.category, name)
			}
			count++
		}
	}
	s.logger.Infow("Taxonomy seeded.", "tags", count)
	return nil
}
