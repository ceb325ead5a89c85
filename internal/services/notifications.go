package services

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/internal/repositories"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Event describes one notification to append.
type Event struct {
	Recipient uint
	Actor     uint
	Kind      models.NotificationKind
	PostID    *uint
	CommentID *uint
}

type NotificationService struct {
	store repositories.Store
	now   func() time.Time
}

func NewNotificationService(store repositories.Store, now func() time.Time) *NotificationService {
	if now == nil {
		now = DefaultNow
	}
	return &NotificationService{store: store, now: now}
}

// Enqueue appends a notification inside the caller's transaction so it
// commits or aborts together with the mutation that triggered it. Events
// where the actor is the recipient are dropped and reported as false.
//
// The recipient row is locked for the rest of the transaction, which orders
// concurrent enqueues for the same recipient. Timestamps never go backwards
// for a recipient even if the wall clock does.
func (s *NotificationService) Enqueue(ctx context.Context, tx *repositories.Repos, ev Event) (bool, error) {
	if ev.Actor == ev.Recipient {
		return false, nil
	}

	if _, err := tx.Users.LockUser(ctx, ev.Recipient); err != nil {
		return false, loadErr(err, "user", ev.Recipient)
	}

	createdAt := s.now()
	last, ok, err := tx.Notifications.LastCreatedAt(ctx, ev.Recipient)
	if err != nil {
		return false, fmt.Errorf("last notification for %d: %w", ev.Recipient, err)
	}
	if ok && !createdAt.After(last) {
		createdAt = last.Add(time.Microsecond)
	}

	n := &models.Notification{
		RecipientID: ev.Recipient,
		ActorID:     ev.Actor,
		Kind:        ev.Kind,
		PostID:      ev.PostID,
		CommentID:   ev.CommentID,
		CreatedAt:   createdAt,
	}
	if err := tx.Notifications.CreateNotification(ctx, n); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}

	log.Debug().
		Uint("recipient", ev.Recipient).
		Uint("actor", ev.Actor).
		Str("kind", string(ev.Kind)).
		Msg("notification enqueued")
	return true, nil
}

// ListUnread returns the user's unread notifications, oldest first.
func (s *NotificationService) ListUnread(ctx context.Context, userID uint) ([]models.NotificationView, error) {
	repos := s.store.Repos()
	notifications, err := repos.Notifications.GetUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return s.withActors(ctx, repos, notifications)
}

// List pages through all of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]models.NotificationView, int64, error) {
	if page < 1 || limit < 1 {
		return nil, 0, errorx.New(errorx.InvalidOperation, "page and limit must be positive")
	}

	repos := s.store.Repos()
	notifications, total, err := repos.Notifications.GetByRecipientID(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	views, err := s.withActors(ctx, repos, notifications)
	return views, total, err
}

// Grouped buckets the user's notifications into today, yesterday, earlier
// this week and older.
func (s *NotificationService) Grouped(ctx context.Context, userID uint) (map[string][]models.NotificationView, error) {
	repos := s.store.Repos()
	today, yesterday, thisWeek, older, err := repos.Notifications.GetGrouped(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("group notifications: %w", err)
	}

	groups := map[string][]models.Notification{
		"today":     today,
		"yesterday": yesterday,
		"this_week": thisWeek,
		"older":     older,
	}
	result := make(map[string][]models.NotificationView, len(groups))
	for name, list := range groups {
		views, err := s.withActors(ctx, repos, list)
		if err != nil {
			return nil, err
		}
		result[name] = views
	}
	return result, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.store.Repos().Notifications.GetUnreadCount(ctx, userID)
}

// MarkRead flags the given notifications as read and returns how many
// changed. IDs owned by other users are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	ids = lo.Uniq(ids)
	updated, err := s.store.Repos().Notifications.MarkAsRead(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return updated, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	updated, err := s.store.Repos().Notifications.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return updated, nil
}

func (s *NotificationService) withActors(ctx context.Context, repos *repositories.Repos, notifications []models.Notification) ([]models.NotificationView, error) {
	views := make([]models.NotificationView, 0, len(notifications))
	if len(notifications) == 0 {
		return views, nil
	}

	actorIDs := lo.Uniq(lo.Map(notifications, func(n models.Notification, _ int) uint { return n.ActorID }))
	actors, err := repos.Users.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, fmt.Errorf("load notification actors: %w", err)
	}
	byID := lo.KeyBy(actors, func(u models.User) uint { return u.ID })

	for _, n := range notifications {
		view := models.NotificationView{Notification: n}
		if actor, ok := byID[n.ActorID]; ok {
			view.ActorInfo = actor.ToCompact()
		}
		views = append(views, view)
	}
	return views, nil
}
