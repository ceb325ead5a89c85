package models

import "time"

// Like is a set member: at most one row per (user, post)
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index;uniqueIndex:idx_user_post_like,priority:1"`
	PostID    uint      `json:"post_id" gorm:"not null;index;uniqueIndex:idx_user_post_like,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}
