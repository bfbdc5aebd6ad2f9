package models

import (
	"strings"
	"time"
)

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
)

// ServerTag identifies the game server a post belongs to.
type ServerTag string

const (
	Server01  ServerTag = "01"
	Server02  ServerTag = "02"
	Server03  ServerTag = "03"
	Server04  ServerTag = "04"
	Server05  ServerTag = "05"
	ServerAll ServerTag = "ALL"
)

// ServerTags lists every accepted server value.
var ServerTags = []ServerTag{Server01, Server02, Server03, Server04, Server05, ServerAll}

// ParseServerTag normalizes raw input into a ServerTag.
func ParseServerTag(raw string) (ServerTag, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	for _, tag := range ServerTags {
		if string(tag) == v {
			return tag, true
		}
	}
	return "", false
}

// MaxPostImages caps the number of images attached to a post.
const MaxPostImages = 5

// Post is a news item submitted by a user and shown in the feed once approved.
type Post struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	AuthorID uint `gorm:"not null;index" json:"author_id"`

	// Snapshots of the author's profile, rewritten on every profile update.
	AuthorDisplayName string `gorm:"size:64;not null" json:"author_display_name"`
	AuthorAvatar      string `gorm:"type:text" json:"author_avatar"`

	Server ServerTag  `gorm:"size:8;not null;index:idx_posts_status_server,priority:2" json:"server"`
	Text   string     `gorm:"type:text;not null" json:"text"`
	Images []string   `gorm:"serializer:json;type:text" json:"images"`
	Status PostStatus `gorm:"size:16;not null;default:pending;index:idx_posts_status_server,priority:1" json:"status"`

	ModeratorNote string     `gorm:"type:text" json:"moderator_note,omitempty"`
	ModeratedBy   *uint      `json:"moderated_by,omitempty"`
	ModeratedAt   *time.Time `json:"moderated_at,omitempty"`

	// Computed when the post is loaded.
	LikedBy    []uint    `gorm:"-" json:"liked_by"`
	LikesCount int       `gorm:"-" json:"likes_count"`
	ViewsCount int       `gorm:"-" json:"views_count"`
	Liked      bool      `gorm:"-" json:"liked"`
	Comments   []Comment `gorm:"foreignKey:PostID" json:"comments"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsVisibleTo reports whether viewerID may read the post.
// Only approved posts are public; authors and admins see the rest.
func (p *Post) IsVisibleTo(viewerID uint, viewerIsAdmin bool) bool {
	if p.Status == PostStatusApproved || viewerIsAdmin {
		return true
	}
	return viewerID != 0 && viewerID == p.AuthorID
}
