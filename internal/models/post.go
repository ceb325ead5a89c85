package models

import "time"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

type Post struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	Caption      string    `json:"caption"`
	Location     *string   `json:"location,omitempty" gorm:"size:255"`
	IsArchived   bool      `json:"is_archived" gorm:"default:false;index"`
	LikeCount    int64     `json:"like_count" gorm:"not null;default:0"`
	CommentCount int64     `json:"comment_count" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`

	User  User    `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Media []Media `json:"media,omitempty" gorm:"foreignKey:PostID"`
}

// Media is one attached item; positions start at 1 and are never rewritten.
type Media struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    uint      `json:"post_id" gorm:"not null;uniqueIndex:idx_post_media_position,priority:1"`
	Position  int       `json:"position" gorm:"not null;uniqueIndex:idx_post_media_position,priority:2"`
	MediaURL  string    `json:"media_url" gorm:"not null"`
	MediaType string    `json:"media_type" gorm:"size:10;not null;default:'image'"`
	CreatedAt time.Time `json:"created_at"`

	Post Post `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

type MediaInput struct {
	MediaURL  string `json:"media_url" validate:"required,url"`
	MediaType string `json:"media_type" validate:"omitempty,oneof=image video"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Caption  string       `json:"caption" validate:"max=2200"`
	Location *string      `json:"location,omitempty" validate:"omitempty,max=255"`
	Media    []MediaInput `json:"media" validate:"required,min=1,max=10,dive"`
}

type AppendMediaRequest struct {
	Media []MediaInput `json:"media" validate:"required,min=1,max=10,dive"`
}

// PostSummary is the read model returned by feed and explore
type PostSummary struct {
	PostID       uint      `json:"post_id"`
	AuthorID     uint      `json:"author_id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Caption      string    `json:"caption"`
	Location     *string   `json:"location,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	ThumbnailURL string    `json:"thumbnail_url"`
	ViewerLiked  bool      `json:"viewer_liked"`
}

// FeedCursor identifies a position in (created_at DESC, id DESC) order.
type FeedCursor struct {
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `json:"post_id"`
}

// Before reports whether c sorts strictly before p in feed order, i.e. c is newer.
func (c FeedCursor) Before(p FeedCursor) bool {
	if !c.CreatedAt.Equal(p.CreatedAt) {
		return c.CreatedAt.After(p.CreatedAt)
	}
	return c.PostID > p.PostID
}
