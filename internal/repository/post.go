package repository

import (
	"context"
	"time"

	"sutnist/internal/cache"
	"sutnist/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations.
// Every read fills the engagement fields (likes, views, comments) for viewerID.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	// ListApproved returns approved posts newest first. A concrete server also matches
	// posts tagged ALL; an empty server or ALL disables the filter.
	ListApproved(ctx context.Context, server models.ServerTag, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListPending(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, includeUnapproved bool, limit, offset int, viewerID uint) ([]*models.Post, error)
	// TransitionStatus moves a pending post to status. It reports false, without error,
	// when the post was no longer pending.
	TransitionStatus(ctx context.Context, id uint, status models.PostStatus, moderatorID uint, note string, at time.Time) (bool, error)
	UpdateAuthorSnapshot(ctx context.Context, authorID uint, displayName, avatar string) (int64, error)
}

type postRepository struct {
	db     *gorm.DB
	cached bool
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, cached: true}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.Images == nil {
		post.Images = []string{}
	}
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return storageError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	if err := r.withComments(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	if err := r.attachEngagement(ctx, r.db, []*models.Post{&post}, viewerID); err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListApproved(ctx context.Context, server models.ServerTag, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	if server == models.ServerAll {
		server = ""
	}

	var ids []uint
	load := func() error {
		q := readDB(r.db).WithContext(ctx).
			Model(&models.Post{}).
			Where("status = ?", models.PostStatusApproved)
		if server != "" {
			q = q.Where("server IN ?", []models.ServerTag{server, models.ServerAll})
		}
		return q.Order("created_at DESC, id DESC").
			Limit(limit).
			Offset(offset).
			Pluck("id", &ids).Error
	}

	var err error
	if r.cached {
		err = cache.Aside(ctx, cache.FeedPageKey(ctx, string(server), limit, offset), &ids, cache.FeedTTL, load)
	} else {
		err = load()
	}
	if err != nil {
		return nil, storageError(err)
	}
	return r.loadOrdered(ctx, readDB(r.db), ids, viewerID)
}

func (r *postRepository) ListPending(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	var posts []*models.Post
	err := r.withComments(r.db.WithContext(ctx)).
		Where("status = ?", models.PostStatusPending).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, storageError(err)
	}
	if err := r.attachEngagement(ctx, r.db, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, includeUnapproved bool, limit, offset int, viewerID uint) ([]*models.Post, error) {
	limit, offset = clampPage(limit, offset)
	q := r.withComments(r.db.WithContext(ctx)).Where("author_id = ?", authorID)
	if !includeUnapproved {
		q = q.Where("status = ?", models.PostStatusApproved)
	}

	var posts []*models.Post
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, storageError(err)
	}
	if err := r.attachEngagement(ctx, r.db, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) TransitionStatus(ctx context.Context, id uint, status models.PostStatus, moderatorID uint, note string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ?", id, models.PostStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"moderator_note": note,
			"moderated_by":   moderatorID,
			"moderated_at":   at,
		})
	if res.Error != nil {
		return false, storageError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *postRepository) UpdateAuthorSnapshot(ctx context.Context, authorID uint, displayName, avatar string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ?", authorID).
		Updates(map[string]interface{}{
			"author_display_name": displayName,
			"author_avatar":       avatar,
		})
	if res.Error != nil {
		return 0, storageError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *postRepository) withComments(db *gorm.DB) *gorm.DB {
	return db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

// loadOrdered fetches posts by id and returns them in the order of ids.
func (r *postRepository) loadOrdered(ctx context.Context, db *gorm.DB, ids []uint, viewerID uint) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}

	var found []*models.Post
	if err := r.withComments(db.WithContext(ctx)).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, storageError(err)
	}
	byID := make(map[uint]*models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	posts := make([]*models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && p.Status == models.PostStatusApproved {
			posts = append(posts, p)
		}
	}
	if err := r.attachEngagement(ctx, db, posts, viewerID); err != nil {
		return nil, err
	}
	return posts, nil
}

type viewCount struct {
	PostID uint
	Total  int
}

// attachEngagement fills LikedBy, LikesCount, ViewsCount and Liked with two grouped queries.
func (r *postRepository) attachEngagement(ctx context.Context, db *gorm.DB, posts []*models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(posts))
	byID := make(map[uint]*models.Post, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		byID[p.ID] = p
		p.LikedBy = []uint{}
		if p.Comments == nil {
			p.Comments = []models.Comment{}
		}
		if p.Images == nil {
			p.Images = []string{}
		}
	}

	var likes []models.Like
	if err := db.WithContext(ctx).
		Select("post_id", "user_id").
		Where("post_id IN ?", ids).
		Order("id ASC").
		Find(&likes).Error; err != nil {
		return storageError(err)
	}
	for _, l := range likes {
		p := byID[l.PostID]
		p.LikedBy = append(p.LikedBy, l.UserID)
		if viewerID != 0 && l.UserID == viewerID {
			p.Liked = true
		}
	}

	var views []viewCount
	if err := db.WithContext(ctx).
		Model(&models.PostView{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", ids).
		Group("post_id").
		Scan(&views).Error; err != nil {
		return storageError(err)
	}
	for _, v := range views {
		byID[v.PostID].ViewsCount = v.Total
	}

	for _, p := range posts {
		p.LikesCount = len(p.LikedBy)
	}
	return nil
}
