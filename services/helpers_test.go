package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/threadbbs/config"
	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase("sqlite", ":memory:", "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, &models.Post{}, &models.Attachment{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestService(t *testing.T) (*PostService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewPostService(db, 25, 100), db
}

func newTestPublisher(t *testing.T) (*Publisher, *PostService, *gorm.DB) {
	t.Helper()
	svc, db := newTestService(t)
	p := NewPublisher(svc,
		utils.NewSanitizer(utils.DefaultSanitizePolicy()),
		utils.NewAttachmentProcessor(utils.DefaultAttachmentPolicy()),
		10)
	return p, svc, db
}

// insertPost writes a post row directly with a fixed timestamp.
func insertPost(t *testing.T, db *gorm.DB, parent *uint, createdAt time.Time) models.Post {
	t.Helper()
	p := models.Post{
		Username:  "user",
		Email:     "user@example.com",
		TextHTML:  "text",
		ParentID:  parent,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func validPost() NewPost {
	return NewPost{Username: "alice", Email: "alice@example.com", TextHTML: "hello"}
}

func uintPtr(v uint) *uint { return &v }

var bg = context.Background()
