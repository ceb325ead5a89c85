package models

import "time"

// TimelineEntry is one row of a viewer's precomputed feed.
type TimelineEntry struct {
	ID            uint      `gorm:"primaryKey"`
	OwnerID       uint      `gorm:"not null;uniqueIndex:idx_timeline_owner_post,priority:1;index:idx_timeline_owner_order,priority:1"`
	PostID        uint      `gorm:"not null;uniqueIndex:idx_timeline_owner_post,priority:2;index"`
	AuthorID      uint      `gorm:"not null;index"`
	PostCreatedAt time.Time `gorm:"not null;index:idx_timeline_owner_order,priority:2"`

	Owner User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Post  Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

// TimelineState records how far back an owner's timeline is complete. Every
// feed post newer than (HorizonAt, HorizonPostID) is present; older posts may
// have been pruned. A nil HorizonAt means nothing was ever pruned.
type TimelineState struct {
	OwnerID       uint       `gorm:"primaryKey;autoIncrement:false"`
	HorizonAt     *time.Time
	HorizonPostID uint

	Owner User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (s TimelineState) Pruned() bool {
	return s.HorizonAt != nil
}

// Horizon returns the horizon as a feed cursor, or nil when never pruned.
func (s TimelineState) Horizon() *FeedCursor {
	if s.HorizonAt == nil {
		return nil
	}
	return &FeedCursor{CreatedAt: *s.HorizonAt, PostID: s.HorizonPostID}
}
