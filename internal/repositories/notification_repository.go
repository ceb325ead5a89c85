package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	LastCreatedAt(ctx context.Context, recipientID uint) (time.Time, bool, error)
	GetUnread(ctx context.Context, recipientID uint) ([]models.Notification, error)
	GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, recipientID uint, now time.Time) (today, yesterday, thisWeek, older []models.Notification, err error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, recipientID uint, ids []uint) (int64, error)
	MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error)
	DeleteByPosts(ctx context.Context, postIDs []uint) error
	DeleteByComments(ctx context.Context, commentIDs []uint) error
	DeleteByUser(ctx context.Context, userID uint) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit("Recipient", "Actor", "Post", "Comment").Create(notification).Error
}

// LastCreatedAt returns the newest notification timestamp for the recipient.
// The boolean is false when the recipient has no notifications yet.
func (r *postgresNotificationRepository) LastCreatedAt(ctx context.Context, recipientID uint) (time.Time, bool, error) {
	var last models.Notification
	err := r.db.WithContext(ctx).
		Select("id", "created_at").
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Order("id DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return last.CreatedAt, true, nil
}

// GetUnread lists unread notifications oldest first.
func (r *postgresNotificationRepository) GetUnread(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Order("created_at ASC").Order("id ASC").
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

// GetGrouped buckets the recipient's notifications by age relative to now.
func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, recipientID uint, now time.Time) (today, yesterday, thisWeek, older []models.Notification, err error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	bucket := func(dst *[]models.Notification, from, to *time.Time) error {
		q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
		if from != nil {
			q = q.Where("created_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("created_at < ?", *to)
		}
		return q.Order("created_at DESC").Order("id DESC").Find(dst).Error
	}

	if err = bucket(&today, &todayStart, nil); err != nil {
		return
	}
	if err = bucket(&yesterday, &yesterdayStart, &todayStart); err != nil {
		return
	}
	if err = bucket(&thisWeek, &weekStart, &yesterdayStart); err != nil {
		return
	}
	err = bucket(&older, nil, &weekStart)
	return
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead flags the given notifications as read. IDs that belong to other
// recipients are ignored.
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", recipientID, ids, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) DeleteByPosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Notification{}).Error
}

func (r *postgresNotificationRepository) DeleteByComments(ctx context.Context, commentIDs []uint) error {
	if len(commentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("comment_id IN ?", commentIDs).Delete(&models.Notification{}).Error
}

func (r *postgresNotificationRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Where("recipient_id = ? OR actor_id = ?", userID, userID).
		Delete(&models.Notification{}).Error
}
