package services

import (
	"context"
	"fmt"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/samber/lo"
)

// FeedStrategy produces one page of a viewer's feed: posts by the viewer and
// everyone the viewer follows, archived posts excluded, ordered by
// (created_at DESC, id DESC). Implementations must return identical pages
// for identical store state.
type FeedStrategy interface {
	GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.PostSummary, error)
}

// ReadTimeFeed computes the feed with one query at read time.
type ReadTimeFeed struct {
	store repositories.Store
}

func NewReadTimeFeed(store repositories.Store) *ReadTimeFeed {
	return &ReadTimeFeed{store: store}
}

func (f *ReadTimeFeed) GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.PostSummary, error) {
	repos := f.store.Repos()
	posts, err := repos.Posts.ListFeed(ctx, viewerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	return buildSummaries(ctx, repos, viewerID, posts)
}

// WriteTimeFeed serves pages from the viewer's materialized timeline. Pages
// reaching past the entries of a pruned timeline are delegated to the
// read-time strategy.
type WriteTimeFeed struct {
	store     repositories.Store
	timelines *TimelineService
	fallback  FeedStrategy
}

func NewWriteTimeFeed(store repositories.Store, timelines *TimelineService) *WriteTimeFeed {
	return &WriteTimeFeed{store: store, timelines: timelines, fallback: NewReadTimeFeed(store)}
}

func (f *WriteTimeFeed) GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.PostSummary, error) {
	state, err := f.timelines.Materialize(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	repos := f.store.Repos()
	if state.Pruned() {
		count, err := repos.Timelines.Count(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("count timeline: %w", err)
		}
		if int64(offset)+int64(limit) > count {
			return f.fallback.GetFeed(ctx, viewerID, limit, offset)
		}
	}

	ids, err := repos.Timelines.List(ctx, viewerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	posts, err := loadPostsInOrder(ctx, repos, ids)
	if err != nil {
		return nil, err
	}
	return buildSummaries(ctx, repos, viewerID, posts)
}

type FeedService struct {
	store    repositories.Store
	strategy FeedStrategy
}

func NewFeedService(store repositories.Store, strategy FeedStrategy) *FeedService {
	if strategy == nil {
		strategy = NewReadTimeFeed(store)
	}
	return &FeedService{store: store, strategy: strategy}
}

// GetFeed returns one offset page of the viewer's feed. Offset pages shift
// when posts are created concurrently; GetFeedAfter does not.
func (s *FeedService) GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.PostSummary, error) {
	if limit <= 0 || offset < 0 {
		return nil, errorx.New(errorx.InvalidOperation, "limit must be positive and offset non-negative")
	}
	if _, err := s.store.Repos().Users.GetUserByID(ctx, viewerID); err != nil {
		return nil, loadErr(err, "user", viewerID)
	}
	return s.strategy.GetFeed(ctx, viewerID, limit, offset)
}

// GetFeedAfter returns the page that follows cursor in feed order, or the
// first page when cursor is nil. The returned cursor is nil on the last page.
func (s *FeedService) GetFeedAfter(ctx context.Context, viewerID uint, cursor *models.FeedCursor, limit int) ([]models.PostSummary, *models.FeedCursor, error) {
	if limit <= 0 {
		return nil, nil, errorx.New(errorx.InvalidOperation, "limit must be positive")
	}

	repos := s.store.Repos()
	if _, err := repos.Users.GetUserByID(ctx, viewerID); err != nil {
		return nil, nil, loadErr(err, "user", viewerID)
	}

	var (
		posts []models.Post
		err   error
	)
	if cursor == nil {
		posts, err = repos.Posts.ListFeed(ctx, viewerID, limit+1, 0)
	} else {
		posts, err = repos.Posts.ListFeedBefore(ctx, viewerID, *cursor, limit+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("list feed: %w", err)
	}

	var next *models.FeedCursor
	if len(posts) > limit {
		posts = posts[:limit]
		last := posts[len(posts)-1]
		next = &models.FeedCursor{CreatedAt: last.CreatedAt, PostID: last.ID}
	}

	summaries, err := buildSummaries(ctx, repos, viewerID, posts)
	if err != nil {
		return nil, nil, err
	}
	return summaries, next, nil
}

// SummariesByIDs returns summaries for the visible posts among ids, in the
// order given. Missing and archived posts are skipped.
func (s *FeedService) SummariesByIDs(ctx context.Context, viewerID uint, ids []uint) ([]models.PostSummary, error) {
	repos := s.store.Repos()
	posts, err := loadPostsInOrder(ctx, repos, ids)
	if err != nil {
		return nil, err
	}
	posts = lo.Filter(posts, func(p models.Post, _ int) bool { return !p.IsArchived })
	return buildSummaries(ctx, repos, viewerID, posts)
}

func loadPostsInOrder(ctx context.Context, repos *repositories.Repos, ids []uint) ([]models.Post, error) {
	found, err := repos.Posts.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	byID := lo.KeyBy(found, func(p models.Post) uint { return p.ID })

	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// buildSummaries attaches author, thumbnail and viewer_liked to posts,
// keeping their order. viewerID 0 means an anonymous viewer.
func buildSummaries(ctx context.Context, repos *repositories.Repos, viewerID uint, posts []models.Post) ([]models.PostSummary, error) {
	summaries := make([]models.PostSummary, 0, len(posts))
	if len(posts) == 0 {
		return summaries, nil
	}

	postIDs := lo.Map(posts, func(p models.Post, _ int) uint { return p.ID })
	authorIDs := lo.Uniq(lo.Map(posts, func(p models.Post, _ int) uint { return p.UserID }))

	authors, err := repos.Users.GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("load authors: %w", err)
	}
	authorByID := lo.KeyBy(authors, func(u models.User) uint { return u.ID })

	thumbnails, err := repos.Media.GetThumbnails(ctx, postIDs)
	if err != nil {
		return nil, fmt.Errorf("load thumbnails: %w", err)
	}

	liked := map[uint]bool{}
	if viewerID != 0 {
		if liked, err = repos.Likes.GetLikedPostIDs(ctx, viewerID, postIDs); err != nil {
			return nil, fmt.Errorf("load viewer likes: %w", err)
		}
	}

	for _, p := range posts {
		author := authorByID[p.UserID]
		summaries = append(summaries, models.PostSummary{
			PostID:       p.ID,
			AuthorID:     p.UserID,
			Username:     author.Username,
			DisplayName:  author.DisplayName,
			Caption:      p.Caption,
			Location:     p.Location,
			CreatedAt:    p.CreatedAt,
			LikeCount:    p.LikeCount,
			CommentCount: p.CommentCount,
			ThumbnailURL: thumbnails[p.ID],
			ViewerLiked:  liked[p.ID],
		})
	}
	return summaries, nil
}
