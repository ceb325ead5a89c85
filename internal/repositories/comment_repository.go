package repositories

import (
	"context"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) error
	GetCommentByID(ctx context.Context, id uint) (*models.Comment, error)
	GetCommentsByPostID(ctx context.Context, postID uint) ([]models.Comment, error)
	GetCommentsByIDs(ctx context.Context, ids []uint) ([]models.Comment, error)
	GetCommentIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	GetCommentIDsByPosts(ctx context.Context, postIDs []uint) ([]uint, error)
	GetDescendantIDs(ctx context.Context, rootIDs []uint) ([]uint, error)
	DeleteComments(ctx context.Context, ids []uint) error
	DeleteByPosts(ctx context.Context, postIDs []uint) error
}

// PostgresCommentRepository implements CommentRepository on top of GORM
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

func (r *PostgresCommentRepository) GetCommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetCommentsByPostID returns the post's comments oldest first
func (r *PostgresCommentRepository) GetCommentsByPostID(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *PostgresCommentRepository) GetCommentsByIDs(ctx context.Context, ids []uint) ([]models.Comment, error) {
	var comments []models.Comment
	if len(ids) == 0 {
		return comments, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&comments).Error
	return comments, err
}

func (r *PostgresCommentRepository) GetCommentIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("user_id = ?", userID).Pluck("id", &ids).Error
	return ids, err
}

func (r *PostgresCommentRepository) GetCommentIDsByPosts(ctx context.Context, postIDs []uint) ([]uint, error) {
	var ids []uint
	if len(postIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id IN ?", postIDs).Pluck("id", &ids).Error
	return ids, err
}

// GetDescendantIDs walks the reply tree below the given comments. The roots
// themselves are not part of the result.
func (r *PostgresCommentRepository) GetDescendantIDs(ctx context.Context, rootIDs []uint) ([]uint, error) {
	var all []uint
	seen := make(map[uint]bool, len(rootIDs))
	for _, id := range rootIDs {
		seen[id] = true
	}

	frontier := rootIDs
	for len(frontier) > 0 {
		var children []uint
		if err := r.db.WithContext(ctx).Model(&models.Comment{}).
			Where("parent_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			all = append(all, id)
			frontier = append(frontier, id)
		}
	}
	return all, nil
}

func (r *PostgresCommentRepository) DeleteComments(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Comment{}).Error
}

func (r *PostgresCommentRepository) DeleteByPosts(ctx context.Context, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error
}
