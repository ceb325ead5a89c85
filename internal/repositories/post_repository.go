package repositories

import (
	"context"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id uint) (*models.Post, error)
	GetPostWithMedia(ctx context.Context, id uint) (*models.Post, error)
	LockPostForCounters(ctx context.Context, id uint) (*models.Post, error)
	LockPost(ctx context.Context, id uint) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []uint) ([]models.Post, error)
	GetPostIDsByUser(ctx context.Context, userID uint) ([]uint, error)
	ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error)
	ListFeedBefore(ctx context.Context, viewerID uint, cursor models.FeedCursor, limit int) ([]models.Post, error)
	ListRecentByAuthor(ctx context.Context, authorID uint, after *models.FeedCursor, limit int) ([]models.Post, error)
	ListPopular(ctx context.Context, since time.Time, limit int) ([]models.Post, error)
	SetArchived(ctx context.Context, id uint) error
	IncrementLikesCount(ctx context.Context, postID uint, delta int64) error
	IncrementCommentsCount(ctx context.Context, postID uint, delta int64) error
	DeletePosts(ctx context.Context, ids []uint) error
}

// PostgresPostRepository implements PostRepository on top of GORM
type PostgresPostRepository struct {
	db *gorm.DB
}

// NewPostgresPostRepository creates a new PostgresPostRepository
func NewPostgresPostRepository(db *gorm.DB) *PostgresPostRepository {
	return &PostgresPostRepository{db: db}
}

// CreatePost inserts the post row only; media is written through MediaRepository.
func (r *PostgresPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

func (r *PostgresPostRepository) GetPostByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostgresPostRepository) GetPostWithMedia(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Media", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LockPostForCounters blocks concurrent deletion of the post and orders
// counter updates on it until the transaction ends. NO KEY UPDATE leaves
// foreign key checks from other writers unblocked.
func (r *PostgresPostRepository) LockPostForCounters(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "NO KEY UPDATE"}).
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// LockPost takes an exclusive row lock for owner mutations of the post.
func (r *PostgresPostRepository) LockPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostgresPostRepository) GetPostsByIDs(ctx context.Context, ids []uint) ([]models.Post, error) {
	var posts []models.Post
	if len(ids) == 0 {
		return posts, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

func (r *PostgresPostRepository) GetPostIDsByUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &ids).Error
	return ids, err
}

// feedScope selects non archived posts by the viewer and everyone the viewer follows.
func (r *PostgresPostRepository) feedScope(ctx context.Context, viewerID uint) *gorm.DB {
	following := r.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("is_archived = ?", false).
		Where("user_id = ? OR user_id IN (?)", viewerID, following)
}

func (r *PostgresPostRepository) ListFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := r.feedScope(ctx, viewerID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *PostgresPostRepository) ListFeedBefore(ctx context.Context, viewerID uint, cursor models.FeedCursor, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.feedScope(ctx, viewerID).
		Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.PostID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// ListRecentByAuthor returns the author's newest visible posts, restricted to
// posts ordered after the given cursor when one is passed.
func (r *PostgresPostRepository) ListRecentByAuthor(ctx context.Context, authorID uint, after *models.FeedCursor, limit int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND is_archived = ?", authorID, false)
	if after != nil {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.PostID)
	}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&posts).Error
	return posts, err
}

func (r *PostgresPostRepository) ListPopular(ctx context.Context, since time.Time, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND is_archived = ?", since, false).
		Order("like_count DESC").Order("comment_count DESC").Order("id ASC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *PostgresPostRepository) SetArchived(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		UpdateColumn("is_archived", true).Error
}

// IncrementLikesCount adjusts the derived like counter; callers run it in the
// same transaction as the Like row change.
func (r *PostgresPostRepository) IncrementLikesCount(ctx context.Context, postID uint, delta int64) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error
}

func (r *PostgresPostRepository) IncrementCommentsCount(ctx context.Context, postID uint, delta int64) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta)).Error
}

func (r *PostgresPostRepository) DeletePosts(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Post{}).Error
}
