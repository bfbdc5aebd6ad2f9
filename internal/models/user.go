// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// DefaultAvatarURL is the generated avatar assigned at registration.
const DefaultAvatarURL = "https://api.dicebear.com/7.x/avataaars/svg?seed=%s"

// User represents a registered community member.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"size:32;not null" json:"username"`
	UsernameKey string `gorm:"size:128;not null;uniqueIndex" json:"-"`
	DisplayName string `gorm:"size:64;not null" json:"display_name"`
	Avatar      string `gorm:"type:text" json:"avatar"`
	Bio         string `gorm:"type:text" json:"bio"`
	Password    string `gorm:"not null" json:"-"`
	IsAdmin     bool   `gorm:"not null;default:false" json:"is_admin"`

	LastUsernameChangeAt    *time.Time `json:"last_username_change_at,omitempty"`
	LastDisplayNameChangeAt *time.Time `json:"last_display_name_change_at,omitempty"`

	// Stats is derived from posts and likes when the user is loaded.
	Stats UserStats `gorm:"-" json:"stats"`

	CreatedAt time.Time `json:"registered_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats holds counters shown on the profile page.
type UserStats struct {
	PostCount     int64 `json:"posts"`
	LikesReceived int64 `json:"likes_received"`
}

// BeforeCreate derives the case-folded lookup key from Username.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	u.UsernameKey = UsernameKey(u.Username)
	return nil
}

// UsernameKey returns the case-insensitive form used for uniqueness and lookup.
func UsernameKey(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

// DefaultAvatar builds the generated avatar reference for a username.
func DefaultAvatar(username string) string {
	return fmt.Sprintf(DefaultAvatarURL, url.QueryEscape(username))
}
