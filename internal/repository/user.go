package repository

import (
	"context"
	"time"

	"sutnist/internal/cache"
	"sutnist/internal/models"

	"gorm.io/gorm"
)

// ProfileChanges lists the user columns an update may touch. Nil fields stay as they are.
type ProfileChanges struct {
	Username                *string
	DisplayName             *string
	Bio                     *string
	Avatar                  *string
	LastUsernameChangeAt    *time.Time
	LastDisplayNameChangeAt *time.Time

	// Cutoffs guard the cooldowns: the row is only updated while the matching change time
	// is NULL or older than the cutoff.
	UsernameCutoff    *time.Time
	DisplayNameCutoff *time.Time
}

func (c ProfileChanges) guarded() bool {
	return c.UsernameCutoff != nil || c.DisplayNameCutoff != nil
}

func (c ProfileChanges) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if c.Username != nil {
		cols["username"] = *c.Username
		cols["username_key"] = models.UsernameKey(*c.Username)
	}
	if c.DisplayName != nil {
		cols["display_name"] = *c.DisplayName
	}
	if c.Bio != nil {
		cols["bio"] = *c.Bio
	}
	if c.Avatar != nil {
		cols["avatar"] = *c.Avatar
	}
	if c.LastUsernameChangeAt != nil {
		cols["last_username_change_at"] = *c.LastUsernameChangeAt
	}
	if c.LastDisplayNameChangeAt != nil {
		cols["last_display_name_change_at"] = *c.LastDisplayNameChangeAt
	}
	return cols
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	// GetByUsername matches case-insensitively and returns the password hash.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, changes ProfileChanges) error
	SetAdmin(ctx context.Context, id uint, isAdmin bool) error
	Stats(ctx context.Context, id uint) (models.UserStats, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db     *gorm.DB
	cached bool
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, cached: true}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	load := func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	}

	var err error
	if r.cached {
		err = cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username_key = ?", models.UsernameKey(username)).
		First(&user).Error
	if err != nil {
		return nil, notFoundOr(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewDuplicateUsernameError(user.Username)
		}
		return storageError(err)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, changes ProfileChanges) error {
	cols := changes.columns()
	if len(cols) == 0 {
		return nil
	}
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
	if changes.UsernameCutoff != nil {
		q = q.Where("(last_username_change_at IS NULL OR last_username_change_at < ?)", *changes.UsernameCutoff)
	}
	if changes.DisplayNameCutoff != nil {
		q = q.Where("(last_display_name_change_at IS NULL OR last_display_name_change_at < ?)", *changes.DisplayNameCutoff)
	}
	res := q.Updates(cols)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) && changes.Username != nil {
			return models.NewDuplicateUsernameError(*changes.Username)
		}
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		if changes.guarded() {
			var n int64
			if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return storageError(err)
			}
			if n > 0 {
				return models.NewRateLimitedError("Profile was changed recently, try again later")
			}
		}
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	return r.updateColumn(ctx, id, "is_admin", isAdmin)
}

func (r *userRepository) updateColumn(ctx context.Context, id uint, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return storageError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// Stats derives profile counters: approved posts authored and likes on any of the user's posts.
func (r *userRepository) Stats(ctx context.Context, id uint) (models.UserStats, error) {
	var stats models.UserStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Post{}).
		Where("author_id = ? AND status = ?", id, models.PostStatusApproved).
		Count(&stats.PostCount).Error; err != nil {
		return stats, storageError(err)
	}
	if err := db.Model(&models.Like{}).
		Joins("JOIN posts ON posts.id = likes.post_id").
		Where("posts.author_id = ?", id).
		Count(&stats.LikesReceived).Error; err != nil {
		return stats, storageError(err)
	}
	return stats, nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var admins []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&admins).Error; err != nil {
		return nil, storageError(err)
	}
	return admins, nil
}
