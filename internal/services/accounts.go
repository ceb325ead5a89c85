package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/internal/search"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// Profile is a user with graph counts.
type Profile struct {
	models.User
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	IsFollowing    bool  `json:"is_following"`
}

type AccountService struct {
	store   repositories.Store
	indexer search.Indexer
	now     func() time.Time
}

func NewAccountService(store repositories.Store, indexer search.Indexer, now func() time.Time) *AccountService {
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	if now == nil {
		now = DefaultNow
	}
	return &AccountService{store: store, indexer: indexer, now: now}
}

// CreateUser registers a user. Username and email are unique; a taken one
// yields Conflict.
func (s *AccountService) CreateUser(ctx context.Context, username, displayName, email, credentialRef string) (uint, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if !usernamePattern.MatchString(username) {
		return 0, errorx.New(errorx.InvalidOperation, "username must be 3-30 characters of a-z, 0-9, '_' or '.'")
	}
	if email == "" {
		return 0, errorx.New(errorx.InvalidOperation, "email is required")
	}

	var user *models.User
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		if _, err := tx.Users.GetUserByUsername(ctx, username); err == nil {
			return errorx.New(errorx.Conflict, "username %q is taken", username)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check username: %w", err)
		}
		if _, err := tx.Users.GetUserByEmail(ctx, email); err == nil {
			return errorx.New(errorx.Conflict, "email %q is already registered", email)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check email: %w", err)
		}

		now := s.now()
		user = &models.User{
			Username:      username,
			DisplayName:   strings.TrimSpace(displayName),
			Email:         email,
			IsActive:      true,
			CredentialRef: credentialRef,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Users.CreateUser(ctx, user); err != nil {
			if repositories.IsUniqueViolation(err) {
				return errorx.New(errorx.Conflict, "username or email already taken")
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info().Uint("user", user.ID).Str("username", username).Msg("user created")
	return user.ID, nil
}

func (s *AccountService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Repos().Users.GetUserByID(ctx, id)
	if err != nil {
		return nil, loadErr(err, "user", id)
	}
	return user, nil
}

// GetUserByLogin looks a user up by username or email.
func (s *AccountService) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	users := s.store.Repos().Users

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = users.GetUserByEmail(ctx, login)
	} else {
		user, err = users.GetUserByUsername(ctx, login)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.New(errorx.NotFound, "user %q not found", login)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", login, err)
	}
	return user, nil
}

// GetUserByCredentialRef returns NotFound when no user holds ref.
func (s *AccountService) GetUserByCredentialRef(ctx context.Context, ref string) (*models.User, error) {
	user, err := s.store.Repos().Users.GetUserByCredentialRef(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errorx.New(errorx.NotFound, "no user for credential")
	}
	if err != nil {
		return nil, fmt.Errorf("load user by credential: %w", err)
	}
	return user, nil
}

// GetProfile returns the user with follower counts as seen by viewerID.
func (s *AccountService) GetProfile(ctx context.Context, viewerID, userID uint) (*Profile, error) {
	repos := s.store.Repos()
	user, err := repos.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, loadErr(err, "user", userID)
	}

	profile := &Profile{User: *user}
	if profile.FollowersCount, err = repos.Follows.GetFollowersCount(ctx, userID); err != nil {
		return nil, err
	}
	if profile.FollowingCount, err = repos.Follows.GetFollowingCount(ctx, userID); err != nil {
		return nil, err
	}
	if viewerID != 0 && viewerID != userID {
		if profile.IsFollowing, err = repos.Follows.IsFollowing(ctx, viewerID, userID); err != nil {
			return nil, err
		}
	}
	if viewerID != userID {
		profile.Email = ""
	}
	return profile, nil
}

// UpdateProfile changes the mutable display attributes. Nil fields are left
// untouched; the username never changes.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, req models.UpdateProfileRequest) (*models.User, error) {
	var user *models.User
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		var err error
		if user, err = tx.Users.LockUser(ctx, userID); err != nil {
			return loadErr(err, "user", userID)
		}
		if req.DisplayName != nil {
			user.DisplayName = strings.TrimSpace(*req.DisplayName)
		}
		if req.Bio != nil {
			user.Bio = *req.Bio
		}
		if req.IsPrivate != nil {
			user.IsPrivate = *req.IsPrivate
		}
		return tx.Users.UpdateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes the user and everything that depends on them in one
// transaction: their posts with all dependents, their likes and comments on
// other posts (with those posts' counters adjusted), follow edges,
// notifications and timelines.
func (s *AccountService) DeleteUser(ctx context.Context, userID uint) error {
	var postIDs []uint
	err := s.store.Transaction(ctx, func(tx *repositories.Repos) error {
		if _, err := tx.Users.LockUser(ctx, userID); err != nil {
			return loadErr(err, "user", userID)
		}

		var err error
		if postIDs, err = tx.Posts.GetPostIDsByUser(ctx, userID); err != nil {
			return fmt.Errorf("load posts: %w", err)
		}
		own := lo.SliceToMap(postIDs, func(id uint) (uint, bool) { return id, true })

		// Comments on other posts: the user's own plus every reply below them.
		authored, err := tx.Comments.GetCommentIDsByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load comments: %w", err)
		}
		replies, err := tx.Comments.GetDescendantIDs(ctx, authored)
		if err != nil {
			return fmt.Errorf("load replies: %w", err)
		}
		comments, err := tx.Comments.GetCommentsByIDs(ctx, lo.Uniq(append(authored, replies...)))
		if err != nil {
			return fmt.Errorf("load comments: %w", err)
		}
		comments = lo.Filter(comments, func(c models.Comment, _ int) bool { return !own[c.PostID] })
		commentIDs := lo.Map(comments, func(c models.Comment, _ int) uint { return c.ID })
		commentsPerPost := lo.CountValuesBy(comments, func(c models.Comment) uint { return c.PostID })

		likesPerPost, err := tx.Likes.CountByPostForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load likes: %w", err)
		}

		if err := deletePosts(ctx, tx, postIDs); err != nil {
			return err
		}

		if err := tx.Notifications.DeleteByComments(ctx, commentIDs); err != nil {
			return err
		}
		if err := tx.Comments.DeleteComments(ctx, commentIDs); err != nil {
			return err
		}
		for postID, n := range commentsPerPost {
			if err := tx.Posts.IncrementCommentsCount(ctx, postID, -int64(n)); err != nil {
				return err
			}
		}

		if err := tx.Likes.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		for postID, n := range likesPerPost {
			if own[postID] {
				continue
			}
			if err := tx.Posts.IncrementLikesCount(ctx, postID, -n); err != nil {
				return err
			}
		}

		if err := tx.Notifications.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.Timelines.DeleteOwner(ctx, userID); err != nil {
			return err
		}
		if err := tx.Follows.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return tx.Users.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	log.Info().Uint("user", userID).Int("posts", len(postIDs)).Msg("user deleted")
	if len(postIDs) > 0 {
		if err := s.indexer.RemovePosts(ctx, postIDs); err != nil {
			log.Error().Err(err).Uint("user", userID).Msg("failed to remove posts from index")
		}
	}
	return nil
}
