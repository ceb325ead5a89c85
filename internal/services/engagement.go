package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/rs/zerolog/log"
)

// EngagementService applies every write to the graph and content stores.
// Notifications are decided from the state transition of each write, never
// from the request alone, so retried or duplicated calls cannot notify twice.
type EngagementService struct {
	store         repositories.Store
	notifications *NotificationService
	timelines     *TimelineService
	indexer       search.Indexer
	now           func() time.Time
}

// NewEngagementService wires the processor. timelines is nil unless
// write-time fan-out is enabled.
func NewEngagementService(store repositories.Store, notifications *NotificationService, timelines *TimelineService, indexer search.Indexer, now func() time.Time) *EngagementService {
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	if now == nil {
		now = DefaultNow
	}
	return &EngagementService{
		store:         store,
		notifications: notifications,
		timelines:     timelines,
		indexer:       indexer,
		now:           now,
	}
}

// Follow adds the edge follower -> followee and reports whether it is new.
func (s *EngagementService) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	if followerID == followeeID {
		return false, errorx.New(errorx.InvalidOperation, "users cannot follow themselves")
	}

	var created bool
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		created = false

		// Both rows are locked in id order. Holding the followee row
		// serializes this follow with the followee's createPost fan-out.
		first, second := followerID, followeeID
		if first > second {
			first, second = second, first
		}
		for _, id := range []uint{first, second} {
			if _, err := tx.Users.LockUser(ctx, id); err != nil {
				return loadErr(err, "user", id)
			}
		}

		inserted, err := tx.Follows.CreateFollow(ctx, followerID, followeeID)
		if err != nil {
			return fmt.Errorf("create follow: %w", err)
		}
		if !inserted {
			return nil
		}
		created = true

		if _, err := s.notifications.Enqueue(ctx, tx, Event{
			Recipient: followeeID,
			Actor:     followerID,
			Kind:      models.NotificationFollow,
		}); err != nil {
			return err
		}

		if s.timelines != nil {
			return s.timelines.Backfill(ctx, tx, followerID, followeeID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Debug().Uint("follower", followerID).Uint("followee", followeeID).Bool("created", created).Msg("follow")
	return created, nil
}

// Unfollow removes the edge if present. It never fails on a missing edge.
func (s *EngagementService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return nil
	}
	return s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		removed, err := tx.Follows.DeleteFollow(ctx, followerID, followeeID)
		if err != nil {
			return fmt.Errorf("delete follow: %w", err)
		}
		if removed && s.timelines != nil {
			return s.timelines.RemoveAuthor(ctx, tx, followerID, followeeID)
		}
		return nil
	})
}

// Like adds (user, post) to the like set and reports whether it is new. Only
// a new like bumps the counter and notifies the owner.
func (s *EngagementService) Like(ctx context.Context, userID, postID uint) (bool, error) {
	var created bool
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		created = false

		post, err := tx.Posts.LockPostForCounters(ctx, postID)
		if err != nil {
			return loadErr(err, "post", postID)
		}
		if _, err := tx.Users.GetUserByID(ctx, userID); err != nil {
			return loadErr(err, "user", userID)
		}

		inserted, err := tx.Likes.CreateLike(ctx, userID, postID)
		if err != nil {
			return fmt.Errorf("create like: %w", err)
		}
		if !inserted {
			return nil
		}
		created = true

		if err := tx.Posts.IncrementLikesCount(ctx, postID, 1); err != nil {
			return fmt.Errorf("increment like count: %w", err)
		}
		_, err = s.notifications.Enqueue(ctx, tx, Event{
			Recipient: post.UserID,
			Actor:     userID,
			Kind:      models.NotificationLike,
			PostID:    &post.ID,
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Unlike removes (user, post) from the like set if present.
func (s *EngagementService) Unlike(ctx context.Context, userID, postID uint) error {
	return s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		removed, err := tx.Likes.DeleteLike(ctx, userID, postID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if !removed {
			return nil
		}
		return tx.Posts.IncrementLikesCount(ctx, postID, -1)
	})
}

// Comment always creates a new comment. parentID, when set, must name a
// comment on the same post.
func (s *EngagementService) Comment(ctx context.Context, userID, postID uint, text string, parentID *uint) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorx.New(errorx.InvalidOperation, "comment text is empty")
	}

	var comment *models.Comment
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		post, err := tx.Posts.LockPostForCounters(ctx, postID)
		if err != nil {
			return loadErr(err, "post", postID)
		}
		if _, err := tx.Users.GetUserByID(ctx, userID); err != nil {
			return loadErr(err, "user", userID)
		}
		if parentID != nil {
			parent, err := tx.Comments.GetCommentByID(ctx, *parentID)
			if err != nil {
				return loadErr(err, "comment", *parentID)
			}
			if parent.PostID != postID {
				return errorx.New(errorx.InvalidOperation, "comment %d belongs to another post", *parentID)
			}
		}

		now := s.now()
		comment = &models.Comment{
			PostID:    postID,
			UserID:    userID,
			ParentID:  parentID,
			Content:   text,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Comments.CreateComment(ctx, comment); err != nil {
			return fmt.Errorf("create comment: %w", err)
		}
		if err := tx.Posts.IncrementCommentsCount(ctx, postID, 1); err != nil {
			return fmt.Errorf("increment comment count: %w", err)
		}

		if _, err := s.notifications.Enqueue(ctx, tx, Event{
			Recipient: post.UserID,
			Actor:     userID,
			Kind:      models.NotificationComment,
			PostID:    &post.ID,
			CommentID: &comment.ID,
		}); err != nil {
			return err
		}
		return s.notifyMentions(ctx, tx, userID, text, post.ID, &comment.ID, userID, post.UserID)
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes the comment and every reply below it. The comment
// author and the post owner may delete.
func (s *EngagementService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	return s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		comment, err := tx.Comments.GetCommentByID(ctx, commentID)
		if err != nil {
			return loadErr(err, "comment", commentID)
		}
		post, err := tx.Posts.LockPostForCounters(ctx, comment.PostID)
		if err != nil {
			return loadErr(err, "post", comment.PostID)
		}
		if comment.UserID != userID && post.UserID != userID {
			return errorx.New(errorx.Unauthorized, "not allowed to delete comment %d", commentID)
		}

		replies, err := tx.Comments.GetDescendantIDs(ctx, []uint{commentID})
		if err != nil {
			return fmt.Errorf("load replies: %w", err)
		}
		ids := append([]uint{commentID}, replies...)

		if err := tx.Notifications.DeleteByComments(ctx, ids); err != nil {
			return err
		}
		if err := tx.Comments.DeleteComments(ctx, ids); err != nil {
			return err
		}
		return tx.Posts.IncrementCommentsCount(ctx, post.ID, -int64(len(ids)))
	})
}
