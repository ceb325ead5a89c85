package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Repos bundles every repository bound to the same connection or transaction.
type Repos struct {
	Users         UserRepository
	Follows       FollowRepository
	Posts         PostRepository
	Media         MediaRepository
	Likes         LikeRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Timelines     TimelineRepository
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Users:         NewPostgresUserRepository(db),
		Follows:       NewPostgresFollowRepository(db),
		Posts:         NewPostgresPostRepository(db),
		Media:         NewPostgresMediaRepository(db),
		Likes:         NewPostgresLikeRepository(db),
		Comments:      NewPostgresCommentRepository(db),
		Notifications: NewPostgresNotificationRepository(db),
		Timelines:     NewPostgresTimelineRepository(db),
	}
}

// Store hands out repositories and runs atomic units of work.
type Store interface {
	Repos() *Repos
	// Transaction runs fn against repositories bound to one transaction.
	// fn may be invoked more than once when the database aborts the
	// transaction with a serialization failure or deadlock.
	Transaction(ctx context.Context, fn func(tx *Repos) error) error
}

type GormStore struct {
	db         *gorm.DB
	repos      *Repos
	maxRetries int
}

func NewGormStore(db *gorm.DB, maxRetries int) *GormStore {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GormStore{db: db, repos: NewRepos(db), maxRetries: maxRetries}
}

func (s *GormStore) Repos() *Repos {
	return s.repos
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx *Repos) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(NewRepos(tx))
		})
		if err == nil || !IsRetryable(err) || attempt >= s.maxRetries {
			return err
		}

		log.Debug().Err(err).Int("attempt", attempt+1).Msg("retrying transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}
}

// IsRetryable reports whether err is a transient conflict that a fresh
// attempt of the same transaction can resolve.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.Post{},
		&models.Media{},
		&models.Like{},
		&models.Comment{},
		&models.Notification{},
		&models.TimelineEntry{},
		&models.TimelineState{},
	)
}
