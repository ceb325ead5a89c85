package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimelineRepository stores the precomputed per-viewer feeds used by the
// write-time strategy.
type TimelineRepository interface {
	Push(ctx context.Context, entries []models.TimelineEntry) error
	RemoveAuthor(ctx context.Context, ownerID, authorID uint) error
	RemovePosts(ctx context.Context, postIDs []uint) error
	DeleteOwner(ctx context.Context, ownerID uint) error
	GetState(ctx context.Context, ownerID uint) (models.TimelineState, bool, error)
	SaveState(ctx context.Context, state models.TimelineState) error
	List(ctx context.Context, ownerID uint, limit, offset int) ([]uint, error)
	Count(ctx context.Context, ownerID uint) (int64, error)
	Prune(ctx context.Context, ownerID uint, keep int) (*models.FeedCursor, error)
	OwnersOverCap(ctx context.Context, keep int) ([]uint, error)
}

type postgresTimelineRepository struct {
	db *gorm.DB
}

func NewPostgresTimelineRepository(db *gorm.DB) TimelineRepository {
	return &postgresTimelineRepository{db: db}
}

// Push inserts entries, skipping any (owner, post) pair already present.
func (r *postgresTimelineRepository) Push(ctx context.Context, entries []models.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(entries, 200).Error
}

func (r *postgresTimelineRepository) RemoveAuthor(ctx context.Context, ownerID, authorID uint) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND author_id = ?", ownerID, authorID).
		Delete(&models.TimelineEntry{}).Error
}

func (r *postgresTimelineRepository) RemovePosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.TimelineEntry{}).Error
}

func (r *postgresTimelineRepository) DeleteOwner(ctx context.Context, ownerID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("owner_id = ?", ownerID).Delete(&models.TimelineEntry{}).Error; err != nil {
		return err
	}
	return db.Where("owner_id = ?", ownerID).Delete(&models.TimelineState{}).Error
}

// GetState returns the owner's state. The boolean is false when the owner's
// timeline was never materialized.
func (r *postgresTimelineRepository) GetState(ctx context.Context, ownerID uint) (models.TimelineState, bool, error) {
	var state models.TimelineState
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TimelineState{OwnerID: ownerID}, false, nil
	}
	if err != nil {
		return state, false, err
	}
	return state, true, nil
}

func (r *postgresTimelineRepository) SaveState(ctx context.Context, state models.TimelineState) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"horizon_at", "horizon_post_id"}),
		}).
		Create(&state).Error
}

// List returns post IDs in feed order.
func (r *postgresTimelineRepository) List(ctx context.Context, ownerID uint, limit, offset int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.TimelineEntry{}).
		Where("owner_id = ?", ownerID).
		Order("post_created_at DESC").Order("post_id DESC").
		Limit(limit).Offset(offset).
		Pluck("post_id", &ids).Error
	return ids, err
}

func (r *postgresTimelineRepository) Count(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TimelineEntry{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// Prune keeps the newest keep entries and deletes the rest. It returns the
// position of the newest removed entry, or nil when nothing was removed.
func (r *postgresTimelineRepository) Prune(ctx context.Context, ownerID uint, keep int) (*models.FeedCursor, error) {
	db := r.db.WithContext(ctx)

	var boundary models.TimelineEntry
	err := db.Where("owner_id = ?", ownerID).
		Order("post_created_at DESC").Order("post_id DESC").
		Offset(keep).
		First(&boundary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = db.Where("owner_id = ?", ownerID).
		Where("post_created_at < ? OR (post_created_at = ? AND post_id <= ?)",
			boundary.PostCreatedAt, boundary.PostCreatedAt, boundary.PostID).
		Delete(&models.TimelineEntry{}).Error
	if err != nil {
		return nil, err
	}
	return &models.FeedCursor{CreatedAt: boundary.PostCreatedAt, PostID: boundary.PostID}, nil
}

func (r *postgresTimelineRepository) OwnersOverCap(ctx context.Context, keep int) ([]uint, error) {
	var owners []uint
	err := r.db.WithContext(ctx).Model(&models.TimelineEntry{}).
		Select("owner_id").
		Group("owner_id").
		Having("COUNT(*) > ?", keep).
		Order("owner_id").
		Pluck("owner_id", &owners).Error
	return owners, err
}
