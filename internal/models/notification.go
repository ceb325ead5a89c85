package models

import "time"

type NotificationKind string

const (
	NotificationFollow        NotificationKind = "follow"
	NotificationLike          NotificationKind = "like"
	NotificationComment       NotificationKind = "comment"
	NotificationMention       NotificationKind = "mention"
	NotificationFollowRequest NotificationKind = "follow_request"
)

// Notification is append-only; only IsRead changes after creation.
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	RecipientID uint             `json:"recipient_id" gorm:"not null;index:idx_notification_recipient,priority:1"`
	ActorID     uint             `json:"actor_id" gorm:"not null;index"`
	Kind        NotificationKind `json:"kind" gorm:"size:20;not null"`
	PostID      *uint            `json:"post_id,omitempty" gorm:"index"`
	CommentID   *uint            `json:"comment_id,omitempty" gorm:"index"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index:idx_notification_recipient,priority:2"`

	Recipient User     `json:"-" gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
	Actor     User     `json:"-" gorm:"foreignKey:ActorID;constraint:OnDelete:CASCADE"`
	Post      *Post    `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Comment   *Comment `json:"-" gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE"`
}

type MarkReadRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=500"`
}

// NotificationView is a notification with its actor resolved for display
type NotificationView struct {
	Notification
	ActorInfo UserCompact `json:"actor"`
}
