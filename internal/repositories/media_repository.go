package repositories

import (
	"context"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MediaRepository stores the ordered media items of posts
type MediaRepository interface {
	CreateMedia(ctx context.Context, media []models.Media) error
	MaxPosition(ctx context.Context, postID uint) (int, error)
	GetThumbnails(ctx context.Context, postIDs []uint) (map[uint]string, error)
	DeleteByPosts(ctx context.Context, postIDs []uint) error
}

type postgresMediaRepository struct {
	db *gorm.DB
}

func NewPostgresMediaRepository(db *gorm.DB) MediaRepository {
	return &postgresMediaRepository{db: db}
}

func (r *postgresMediaRepository) CreateMedia(ctx context.Context, media []models.Media) error {
	if len(media) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&media).Error
}

func (r *postgresMediaRepository) MaxPosition(ctx context.Context, postID uint) (int, error) {
	var maxPos int
	err := r.db.WithContext(ctx).Model(&models.Media{}).
		Where("post_id = ?", postID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&maxPos).Error
	return maxPos, err
}

// GetThumbnails maps post id to the url of its first media item.
func (r *postgresMediaRepository) GetThumbnails(ctx context.Context, postIDs []uint) (map[uint]string, error) {
	result := make(map[uint]string, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var media []models.Media
	if err := r.db.WithContext(ctx).
		Where("post_id IN ? AND position = ?", postIDs, 1).
		Find(&media).Error; err != nil {
		return nil, err
	}
	for _, m := range media {
		result[m.PostID] = m.MediaURL
	}
	return result, nil
}

func (r *postgresMediaRepository) DeleteByPosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Media{}).Error
}
