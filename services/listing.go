package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

// sortColumns maps accepted sort_by values to column names. Nothing else reaches ORDER BY.
var sortColumns = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"username":   "username",
	"email":      "email",
}

// ListQuery selects one page of root posts. Zero values mean defaults:
// page 1, the service default limit, sort by id, descending.
type ListQuery struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// ListResult is one page of root posts expanded into their trees.
type ListResult struct {
	Posts      []*PostView `json:"posts"`
	TotalPages int         `json:"totalPages"`
}

// NormalizeListQuery fills defaults and rejects values outside the accepted ranges.
func (s *PostService) NormalizeListQuery(q ListQuery) (ListQuery, error) {
	var reasons []string
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = s.defaultLimit
	}
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if q.SortBy == "" {
		q.SortBy = "id"
	}
	q.SortOrder = strings.ToLower(strings.TrimSpace(q.SortOrder))
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}

	if q.Page < 1 {
		reasons = append(reasons, "page must be a positive integer")
	}
	if q.Limit < 1 || q.Limit > s.maxLimit {
		reasons = append(reasons, fmt.Sprintf("limit must be between 1 and %d", s.maxLimit))
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		reasons = append(reasons, "invalid sort_by value")
	}
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		reasons = append(reasons, "sort_order must be asc or desc")
	}
	if len(reasons) > 0 {
		return q, utils.NewValidationError(reasons...)
	}
	return q, nil
}

// ListRoots returns one page of root posts, each expanded with its replies.
// Pages past the last one yield an empty list.
func (s *PostService) ListRoots(ctx context.Context, q ListQuery) (*ListResult, error) {
	q, err := s.NormalizeListQuery(q)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var total int64
	if err := roots(db).Count(&total).Error; err != nil {
		return nil, err
	}
	result := &ListResult{
		Posts:      []*PostView{},
		TotalPages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}
	if q.Page > result.TotalPages {
		return result, nil
	}

	desc := q.SortOrder == "desc"
	query := roots(db).Order(clause.OrderByColumn{Column: clause.Column{Name: sortColumns[q.SortBy]}, Desc: desc})
	if q.SortBy != "id" {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
	}
	var page []models.Post
	if err := query.Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&page).Error; err != nil {
		return nil, err
	}

	views, err := s.SerializeMany(ctx, page)
	if err != nil {
		return nil, err
	}
	result.Posts = views
	return result, nil
}

func roots(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).Where("parent_id IS NULL")
}
