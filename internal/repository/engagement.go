package repository

import (
	"context"

	"sutnist/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository stores likes, views and comments.
type EngagementRepository interface {
	// AddLike reports whether a new like was stored (false if it already existed).
	AddLike(ctx context.Context, userID, postID uint) (bool, error)
	// RemoveLike reports whether a like was removed.
	RemoveLike(ctx context.Context, userID, postID uint) (bool, error)
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	// AddView reports whether viewerKey saw the post for the first time.
	AddView(ctx context.Context, postID uint, viewerKey string) (bool, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
	UpdateCommentAuthorSnapshot(ctx context.Context, authorID uint, displayName string) (int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository returns a gorm-backed EngagementRepository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) AddLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *engagementRepository) RemoveLike(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *engagementRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, storageError(err)
	}
	return count > 0, nil
}

func (r *engagementRepository) AddView(ctx context.Context, postID uint, viewerKey string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostView{PostID: postID, ViewerKey: viewerKey})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *engagementRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return storageError(err)
	}
	return nil
}

func (r *engagementRepository) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, storageError(err)
	}
	return comments, nil
}

func (r *engagementRepository) UpdateCommentAuthorSnapshot(ctx context.Context, authorID uint, displayName string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("author_id = ?", authorID).
		Update("author_display_name", displayName)
	if res.Error != nil {
		return 0, storageError(res.Error)
	}
	return res.RowsAffected, nil
}
