package models

import "time"

// Image is an uploaded picture stored under its content hash.
type Image struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Hash       string    `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	UploaderID uint      `gorm:"not null;index" json:"uploader_id"`
	MimeType   string    `gorm:"size:32;not null" json:"mime_type"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	SizeBytes  int64     `json:"size_bytes"`
	Path       string    `gorm:"not null" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
