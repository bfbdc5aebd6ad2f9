package models

import "time"

// NotificationKind classifies a notification.
type NotificationKind string

const (
	NotificationApproval  NotificationKind = "approval"
	NotificationRejection NotificationKind = "rejection"
	NotificationSystem    NotificationKind = "system"
)

// Notification is a message in a user's feed, created by moderation decisions.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	PostID    *uint            `gorm:"index" json:"post_id,omitempty"`
	Kind      NotificationKind `gorm:"size:16;not null" json:"kind"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Read      bool             `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
