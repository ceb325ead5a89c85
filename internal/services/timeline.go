package services

import (
	"context"
	"fmt"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DefaultTimelineCap bounds how many entries a materialized timeline keeps.
const DefaultTimelineCap = 800

// TimelineService maintains the per-viewer timelines behind write-time
// fan-out. A materialized timeline holds exactly the viewer's feed posts
// that are newer than its horizon; a timeline that was never pruned has no
// horizon and holds the whole feed.
type TimelineService struct {
	store repositories.Store
	cap   int
}

func NewTimelineService(store repositories.Store, capacity int) *TimelineService {
	if capacity <= 0 {
		capacity = DefaultTimelineCap
	}
	return &TimelineService{store: store, cap: capacity}
}

// PushPost adds a freshly created post to the given owners' timelines.
func (s *TimelineService) PushPost(ctx context.Context, tx *repositories.Repos, post *models.Post, ownerIDs []uint) error {
	entries := lo.Map(lo.Uniq(ownerIDs), func(owner uint, _ int) models.TimelineEntry {
		return models.TimelineEntry{
			OwnerID:       owner,
			PostID:        post.ID,
			AuthorID:      post.UserID,
			PostCreatedAt: post.CreatedAt,
		}
	})
	if err := tx.Timelines.Push(ctx, entries); err != nil {
		return fmt.Errorf("push post %d to timelines: %w", post.ID, err)
	}
	return nil
}

// Backfill copies the followee's posts newer than the follower's horizon into
// the follower's timeline. One more post than the cap is fetched so that a
// truncated fetch always triggers a prune whose horizon covers the posts that
// were left out.
func (s *TimelineService) Backfill(ctx context.Context, tx *repositories.Repos, followerID, followeeID uint) error {
	state, found, err := tx.Timelines.GetState(ctx, followerID)
	if err != nil {
		return fmt.Errorf("timeline state %d: %w", followerID, err)
	}
	if !found {
		return nil
	}

	posts, err := tx.Posts.ListRecentByAuthor(ctx, followeeID, state.Horizon(), s.cap+1)
	if err != nil {
		return fmt.Errorf("recent posts of %d: %w", followeeID, err)
	}
	if len(posts) == 0 {
		return nil
	}

	entries := lo.Map(posts, func(p models.Post, _ int) models.TimelineEntry {
		return models.TimelineEntry{OwnerID: followerID, PostID: p.ID, AuthorID: p.UserID, PostCreatedAt: p.CreatedAt}
	})
	if err := tx.Timelines.Push(ctx, entries); err != nil {
		return fmt.Errorf("backfill timeline %d: %w", followerID, err)
	}

	count, err := tx.Timelines.Count(ctx, followerID)
	if err != nil {
		return err
	}
	if count > int64(s.cap) {
		return s.prune(ctx, tx, state)
	}
	return nil
}

// RemoveAuthor drops the author's posts from the owner's timeline.
func (s *TimelineService) RemoveAuthor(ctx context.Context, tx *repositories.Repos, ownerID, authorID uint) error {
	return tx.Timelines.RemoveAuthor(ctx, ownerID, authorID)
}

func (s *TimelineService) RemovePosts(ctx context.Context, tx *repositories.Repos, postIDs []uint) error {
	return tx.Timelines.RemovePosts(ctx, postIDs)
}

// Materialize returns the owner's timeline state, building the timeline from
// the read-time feed first if it was never materialized.
func (s *TimelineService) Materialize(ctx context.Context, ownerID uint) (models.TimelineState, error) {
	state, found, err := s.store.Repos().Timelines.GetState(ctx, ownerID)
	if err != nil {
		return state, fmt.Errorf("timeline state %d: %w", ownerID, err)
	}
	if found {
		return state, nil
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		var found bool
		state, found, err = tx.Timelines.GetState(ctx, ownerID)
		if err != nil || found {
			return err
		}

		// Entries pushed before materialization are not trusted.
		if err := tx.Timelines.DeleteOwner(ctx, ownerID); err != nil {
			return err
		}

		posts, err := tx.Posts.ListFeed(ctx, ownerID, s.cap+1, 0)
		if err != nil {
			return err
		}

		state = models.TimelineState{OwnerID: ownerID}
		if len(posts) > s.cap {
			boundary := posts[s.cap]
			state.HorizonAt = &boundary.CreatedAt
			state.HorizonPostID = boundary.ID
			posts = posts[:s.cap]
		}

		entries := lo.Map(posts, func(p models.Post, _ int) models.TimelineEntry {
			return models.TimelineEntry{OwnerID: ownerID, PostID: p.ID, AuthorID: p.UserID, PostCreatedAt: p.CreatedAt}
		})
		if err := tx.Timelines.Push(ctx, entries); err != nil {
			return err
		}
		return tx.Timelines.SaveState(ctx, state)
	})
	if err != nil {
		return state, fmt.Errorf("materialize timeline %d: %w", ownerID, err)
	}

	log.Debug().Uint("owner", ownerID).Bool("pruned", state.Pruned()).Msg("timeline materialized")
	return state, nil
}

// Prune trims the owner's timeline to the cap and advances its horizon.
func (s *TimelineService) Prune(ctx context.Context, ownerID uint) error {
	return s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		state, found, err := tx.Timelines.GetState(ctx, ownerID)
		if err != nil {
			return err
		}
		if !found {
			return tx.Timelines.DeleteOwner(ctx, ownerID)
		}
		return s.prune(ctx, tx, state)
	})
}

// PruneAll prunes every timeline over the cap and returns how many were
// pruned. Failures on one owner are logged and do not stop the sweep.
func (s *TimelineService) PruneAll(ctx context.Context) (int, error) {
	owners, err := s.store.Repos().Timelines.OwnersOverCap(ctx, s.cap)
	if err != nil {
		return 0, fmt.Errorf("find timelines over cap: %w", err)
	}

	pruned := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if err := s.Prune(ctx, owner); err != nil {
			log.Error().Err(err).Uint("owner", owner).Msg("failed to prune timeline")
			continue
		}
		pruned++
	}
	return pruned, nil
}

func (s *TimelineService) prune(ctx context.Context, tx *repositories.Repos, state models.TimelineState) error {
	removed, err := tx.Timelines.Prune(ctx, state.OwnerID, s.cap)
	if err != nil {
		return fmt.Errorf("prune timeline %d: %w", state.OwnerID, err)
	}
	if removed == nil {
		return nil
	}

	if horizon := state.Horizon(); horizon == nil || removed.Before(*horizon) {
		state.HorizonAt = &removed.CreatedAt
		state.HorizonPostID = removed.PostID
	}
	return tx.Timelines.SaveState(ctx, state)
}
