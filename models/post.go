package models

import "time"

// Post is a message node. A nil ParentID marks a root post, otherwise the post is a reply.
type Post struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Username    string       `gorm:"size:18;not null" json:"username"`
	Email       string       `gorm:"not null" json:"email"`
	HomepageURL *string      `gorm:"size:200" json:"homepage_url"`
	TextHTML    string       `gorm:"not null" json:"text_html"`
	ParentID    *uint        `gorm:"index" json:"parent"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Files       []Attachment `gorm:"foreignKey:PostID" json:"files,omitempty"`
}

// IsReply reports whether the post hangs under another post.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}
