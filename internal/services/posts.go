package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/rs/zerolog/log"
)

// PostDetail is a post with its media in position order.
type PostDetail struct {
	models.Post
	Author      models.UserCompact `json:"author"`
	ViewerLiked bool               `json:"viewer_liked"`
}

// CreatePost stores the post and its media at positions 1..N in the given
// order. A post needs at least one media item.
func (s *EngagementService) CreatePost(ctx context.Context, ownerID uint, caption string, location *string, media []models.MediaInput) (uint, error) {
	if len(media) == 0 {
		return 0, errorx.New(errorx.InvalidOperation, "a post needs at least one media item")
	}
	if err := validateMedia(media); err != nil {
		return 0, err
	}

	var post *models.Post
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		// Holding the owner row orders this post against concurrent follows
		// of the owner, so write-time fan-out cannot miss a new follower.
		if _, err := tx.Users.LockUser(ctx, ownerID); err != nil {
			return loadErr(err, "user", ownerID)
		}

		now := s.now()
		post = &models.Post{
			UserID:    ownerID,
			Caption:   caption,
			Location:  location,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Posts.CreatePost(ctx, post); err != nil {
			return fmt.Errorf("create post: %w", err)
		}
		if err := tx.Media.CreateMedia(ctx, mediaRows(post.ID, 1, media, now)); err != nil {
			return fmt.Errorf("create media: %w", err)
		}

		if err := s.notifyMentions(ctx, tx, ownerID, caption, post.ID, nil, ownerID); err != nil {
			return err
		}

		if s.timelines != nil {
			followers, err := tx.Follows.GetFollowerIDs(ctx, ownerID)
			if err != nil {
				return fmt.Errorf("load followers: %w", err)
			}
			return s.timelines.PushPost(ctx, tx, post, append(followers, ownerID))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Debug().Uint("post", post.ID).Uint("owner", ownerID).Int("media", len(media)).Msg("post created")
	s.index(ctx, post)
	return post.ID, nil
}

// AppendMedia attaches more media after the post's current last position.
func (s *EngagementService) AppendMedia(ctx context.Context, ownerID, postID uint, media []models.MediaInput) error {
	if len(media) == 0 {
		return errorx.New(errorx.InvalidOperation, "no media to append")
	}
	if err := validateMedia(media); err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		post, err := tx.Posts.LockPost(ctx, postID)
		if err != nil {
			return loadErr(err, "post", postID)
		}
		if post.UserID != ownerID {
			return errorx.New(errorx.Unauthorized, "only the owner can add media to post %d", postID)
		}

		last, err := tx.Media.MaxPosition(ctx, postID)
		if err != nil {
			return fmt.Errorf("media position: %w", err)
		}
		return tx.Media.CreateMedia(ctx, mediaRows(postID, last+1, media, s.now()))
	})
}

// ArchivePost hides the post from feeds, explore and search. Archiving twice
// is a no-op.
func (s *EngagementService) ArchivePost(ctx context.Context, ownerID, postID uint) error {
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		post, err := tx.Posts.LockPost(ctx, postID)
		if err != nil {
			return loadErr(err, "post", postID)
		}
		if post.UserID != ownerID {
			return errorx.New(errorx.Unauthorized, "only the owner can archive post %d", postID)
		}
		if post.IsArchived {
			return nil
		}
		if err := tx.Posts.SetArchived(ctx, postID); err != nil {
			return fmt.Errorf("archive post: %w", err)
		}
		return tx.Timelines.RemovePosts(ctx, []uint{postID})
	})
	if err != nil {
		return err
	}

	s.unindex(ctx, []uint{postID})
	return nil
}

// DeletePost removes the post with its media, likes, comments, notifications
// and timeline entries in one transaction.
func (s *EngagementService) DeletePost(ctx context.Context, ownerID, postID uint) error {
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		post, err := tx.Posts.LockPost(ctx, postID)
		if err != nil {
			return loadErr(err, "post", postID)
		}
		if post.UserID != ownerID {
			return errorx.New(errorx.Unauthorized, "only the owner can delete post %d", postID)
		}
		return deletePosts(ctx, tx, []uint{postID})
	})
	if err != nil {
		return err
	}

	s.unindex(ctx, []uint{postID})
	return nil
}

// GetPost returns the post with media. Archived posts are visible to their
// owner only.
func (s *EngagementService) GetPost(ctx context.Context, viewerID, postID uint) (*PostDetail, error) {
	repos := s.store.Repos()
	post, err := repos.Posts.GetPostWithMedia(ctx, postID)
	if err != nil {
		return nil, loadErr(err, "post", postID)
	}
	if post.IsArchived && post.UserID != viewerID {
		return nil, errorx.New(errorx.NotFound, "post %d not found", postID)
	}

	author, err := repos.Users.GetUserByID(ctx, post.UserID)
	if err != nil {
		return nil, loadErr(err, "user", post.UserID)
	}
	liked, err := repos.Likes.HasUserLikedPost(ctx, viewerID, postID)
	if err != nil {
		return nil, fmt.Errorf("load viewer like: %w", err)
	}
	return &PostDetail{Post: *post, Author: author.ToCompact(), ViewerLiked: liked}, nil
}

// ListComments returns the post's comments oldest first.
func (s *EngagementService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	repos := s.store.Repos()
	if _, err := repos.Posts.GetPostByID(ctx, postID); err != nil {
		return nil, loadErr(err, "post", postID)
	}
	comments, err := repos.Comments.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// deletePosts cascades the removal of posts and everything that references
// them. Callers hold the transaction.
func deletePosts(ctx context.Context, tx *repositories.Repos, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	commentIDs, err := tx.Comments.GetCommentIDsByPosts(ctx, postIDs)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}

	steps := []func() error{
		func() error { return tx.Notifications.DeleteByPosts(ctx, postIDs) },
		func() error { return tx.Notifications.DeleteByComments(ctx, commentIDs) },
		func() error { return tx.Timelines.RemovePosts(ctx, postIDs) },
		func() error { return tx.Likes.DeleteByPosts(ctx, postIDs) },
		func() error { return tx.Comments.DeleteByPosts(ctx, postIDs) },
		func() error { return tx.Media.DeleteByPosts(ctx, postIDs) },
		func() error { return tx.Posts.DeletePosts(ctx, postIDs) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("delete posts: %w", err)
		}
	}
	return nil
}

func validateMedia(media []models.MediaInput) error {
	for i, m := range media {
		if m.MediaURL == "" {
			return errorx.New(errorx.InvalidOperation, "media %d has no url", i+1)
		}
		switch m.MediaType {
		case "", models.MediaTypeImage, models.MediaTypeVideo:
		default:
			return errorx.New(errorx.InvalidOperation, "media %d has unknown type %q", i+1, m.MediaType)
		}
	}
	return nil
}

func mediaRows(postID uint, firstPosition int, media []models.MediaInput, now time.Time) []models.Media {
	rows := make([]models.Media, 0, len(media))
	for i, m := range media {
		mediaType := m.MediaType
		if mediaType == "" {
			mediaType = models.MediaTypeImage
		}
		rows = append(rows, models.Media{
			PostID:    postID,
			Position:  firstPosition + i,
			MediaURL:  m.MediaURL,
			MediaType: mediaType,
			CreatedAt: now,
		})
	}
	return rows
}

func (s *EngagementService) index(ctx context.Context, post *models.Post) {
	doc := search.Document{PostID: post.ID, AuthorID: post.UserID, Caption: post.Caption, CreatedAt: post.CreatedAt}
	if err := s.indexer.IndexPost(ctx, doc); err != nil {
		log.Error().Err(err).Uint("post", post.ID).Msg("failed to index post")
	}
}

func (s *EngagementService) unindex(ctx context.Context, postIDs []uint) {
	if err := s.indexer.RemovePosts(ctx, postIDs); err != nil {
		log.Error().Err(err).Uints("posts", postIDs).Msg("failed to remove posts from index")
	}
}
