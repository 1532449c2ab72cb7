package models

import "time"

// Attachment is a file owned by exactly one post. Payload holds the base64 encoded content.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"index;not null" json:"post_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	ContentType string    `gorm:"size:100;not null" json:"content_type"`
	Payload     string    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
