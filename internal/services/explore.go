package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
)

// maxExploreWindowDays bounds the trailing window; longer windows cover
// every post anyway.
const maxExploreWindowDays = 100 * 366

type ExploreService struct {
	store repositories.Store
	now   func() time.Time
}

func NewExploreService(store repositories.Store, now func() time.Time) *ExploreService {
	if now == nil {
		now = DefaultNow
	}
	return &ExploreService{store: store, now: now}
}

// ExplorePopular ranks non archived posts created in the trailing window by
// (like_count DESC, comment_count DESC, id ASC). viewerID only decides
// viewer_liked and may be 0.
func (s *ExploreService) ExplorePopular(ctx context.Context, viewerID uint, windowDays, limit int) ([]models.PostSummary, error) {
	if windowDays <= 0 || limit <= 0 {
		return nil, errorx.New(errorx.InvalidOperation, "window and limit must be positive")
	}

	windowDays = min(windowDays, maxExploreWindowDays)
	since := s.now().AddDate(0, 0, -windowDays)
	repos := s.store.Repos()
	posts, err := repos.Posts.ListPopular(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list popular posts: %w", err)
	}
	return buildSummaries(ctx, repos, viewerID, posts)
}
