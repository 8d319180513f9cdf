package service

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pi-kari/animal-share-back/internal/config"
	"github.com/pi-kari/animal-share-back/internal/db"
)

// Profile is what the identity provider tells us about a user on login.
type Profile struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Name       string
	Picture    string
}

// Sessions upserts users on login and issues opaque session tokens. Only a
// blake2b digest of each token is stored.
type Sessions struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(db *gorm.DB, l *zap.SugaredLogger, cfg *config.Config) *Sessions {
	return &Sessions{
		db:     db,
		logger: l,
		ttl:    cfg.SessionTTL,
		now:    time.Now,
	}
}

func (s *Sessions) UpsertUser(ctx context.Context, p Profile) (*db.User, error) {
	if strings.TrimSpace(p.Subject) == "" {
		return nil, errors.Wrap(ErrValidation, "profile has no subject")
	}

	user := db.User{
		ID:          p.Subject,
		GivenName:   p.GivenName,
		FamilyName:  p.FamilyName,
		DisplayName: p.Name,
		AvatarURL:   p.Picture,
	}
	if user.DisplayName == "" {
		user.DisplayName = strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	}
	if email := strings.TrimSpace(p.Email); email != "" {
		user.Email = &email
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "given_name", "family_name", "display_name", "avatar_url", "updated_at"}),
	}).Create(&user)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "upsert user")
	}

	stored := db.User{}
	if err := s.db.WithContext(ctx).First(&stored, "id = ?", p.Subject).Error; err != nil {
		return nil, errors.Wrap(err, "reload user")
	}
	return &stored, nil
}

// Create issues a new session for userID and returns the raw token.
func (s *Sessions) Create(ctx context.Context, userID string) (string, time.Time, error) {
	token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	expires := s.now().Add(s.ttl).UTC()

	model := db.Session{
		UserID:    userID,
		TokenHash: digest(token),
		ExpiresAt: expires,
	}
	res := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model)
	if res.Error != nil {
		return "", time.Time{}, errors.Wrap(res.Error, "create session")
	}
	return token, expires, nil
}

// Resolve maps a raw token to its user. Unknown and expired tokens yield
// ErrUnauthenticated; expired sessions are removed on the way.
func (s *Sessions) Resolve(ctx context.Context, token string) (*db.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session := db.Session{}
	res := s.db.WithContext(ctx).Where("token_hash = ?", digest(token)).Limit(1).Find(&session)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find session")
	}
	if res.RowsAffected == 0 {
		return nil, ErrUnauthenticated
	}
	if !s.now().Before(session.ExpiresAt) {
		if err := s.db.WithContext(ctx).Delete(&db.Session{}, session.ID).Error; err != nil {
			s.logger.Warnw("Failed to drop expired session.", "session_id", session.ID, "error", err)
		}
		return nil, ErrUnauthenticated
	}

	user := db.User{}
	if err := s.db.WithContext(ctx).First(&user, "id = ?", session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(err, "find session user")
	}
	return &user, nil
}

func (s *Sessions) Revoke(ctx context.Context, token string) error {
	res := s.db.WithContext(ctx).Where("token_hash = ?", digest(token)).Delete(&db.Session{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete session")
	}
	return nil
}

func digest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
