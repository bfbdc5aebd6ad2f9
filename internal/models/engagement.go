package models

import "time"

// Like records that a user liked a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView records one viewer of a post. ViewerKey is "u:<id>" for members and
// "g:<ksuid>" for guests.
type PostView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_view_post_viewer" json:"post_id"`
	ViewerKey string    `gorm:"size:64;not null;uniqueIndex:idx_view_post_viewer" json:"viewer_key"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is an immutable remark on a post.
type Comment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	PostID            uint      `gorm:"not null;index" json:"post_id"`
	AuthorID          uint      `gorm:"not null;index" json:"author_id"`
	AuthorDisplayName string    `gorm:"size:64;not null" json:"author_display_name"`
	Text              string    `gorm:"type:text;not null" json:"text"`
	CreatedAt         time.Time `json:"created_at"`
}
