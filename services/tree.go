package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

// inListChunk bounds the number of ids bound into a single IN (...) clause.
const inListChunk = 500

// FileView is the serialized form of an attachment.
type FileView struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	FileBase64  string `json:"file_base64"`
}

// PostView is a post together with its files and its full reply subtree.
// Building a tree never recurses, but encoding/json walks Replies recursively, so
// encoding depth is bounded only by the goroutine stack (1 GB max on 64-bit).
// Decoding such a document with encoding/json fails past 10000 nesting levels,
// which is about 5000 reply levels.
type PostView struct {
	ID          uint        `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	HomepageURL *string     `json:"homepage_url"`
	TextHTML    string      `json:"text_html"`
	ParentID    *uint       `json:"parent"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Files       []FileView  `json:"files"`
	Replies     []*PostView `json:"replies"`
}

func newPostView(p models.Post) *PostView {
	return &PostView{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		HomepageURL: p.HomepageURL,
		TextHTML:    p.TextHTML,
		ParentID:    p.ParentID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Files:       []FileView{},
		Replies:     []*PostView{},
	}
}

// BuildTree links roots, their descendants and files into views without recursion.
// Replies are ordered by created_at then id; files by id. Descendants whose parent is
// not among the given posts are dropped.
func BuildTree(roots, descendants []models.Post, files []models.Attachment) []*PostView {
	views := make(map[uint]*PostView, len(roots)+len(descendants))
	out := make([]*PostView, 0, len(roots))
	for _, r := range roots {
		v := newPostView(r)
		views[r.ID] = v
		out = append(out, v)
	}

	replies := make([]models.Post, 0, len(descendants))
	for _, d := range descendants {
		if _, dup := views[d.ID]; dup {
			continue
		}
		views[d.ID] = newPostView(d)
		replies = append(replies, d)
	}
	sort.SliceStable(replies, func(i, j int) bool {
		return replyBefore(replies[i], replies[j])
	})
	for _, r := range replies {
		if !r.IsReply() {
			continue
		}
		if parent, ok := views[*r.ParentID]; ok {
			parent.Replies = append(parent.Replies, views[r.ID])
		}
	}

	sorted := append([]models.Attachment(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, f := range sorted {
		if v, ok := views[f.PostID]; ok {
			v.Files = append(v.Files, FileView{Filename: f.Filename, ContentType: f.ContentType, FileBase64: f.Payload})
		}
	}
	return out
}

func replyBefore(a, b models.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Serialize expands a single post.
func (s *PostService) Serialize(ctx context.Context, post models.Post) (*PostView, error) {
	views, err := s.SerializeMany(ctx, []models.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// SerializeMany expands every given post into its reply tree, preserving input order.
// Descendants are fetched one depth level at a time.
func (s *PostService) SerializeMany(ctx context.Context, posts []models.Post) ([]*PostView, error) {
	if len(posts) == 0 {
		return []*PostView{}, nil
	}
	db := s.db.WithContext(ctx)

	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	descendants, err := loadDescendants(db, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}
	files, err := loadFiles(db, ids)
	if err != nil {
		return nil, err
	}
	return BuildTree(posts, descendants, files), nil
}

// loadDescendants walks the reply tree breadth first starting below rootIDs.
// Ids already seen are never expanded twice, so malformed cyclic data cannot loop.
func loadDescendants(db *gorm.DB, rootIDs []uint, columns ...string) ([]models.Post, error) {
	seen := make(map[uint]struct{}, len(rootIDs))
	for _, id := range rootIDs {
		seen[id] = struct{}{}
	}

	var all []models.Post
	frontier := rootIDs
	for len(frontier) > 0 {
		var next []uint
		for _, chunk := range utils.ChunkUint(frontier, inListChunk) {
			query := db.Where("parent_id IN ?", chunk)
			if len(columns) > 0 {
				query = query.Select(columns)
			}
			var level []models.Post
			if err := query.Find(&level).Error; err != nil {
				return nil, err
			}
			for _, p := range level {
				if _, ok := seen[p.ID]; ok {
					continue
				}
				seen[p.ID] = struct{}{}
				all = append(all, p)
				next = append(next, p.ID)
			}
		}
		frontier = next
	}
	return all, nil
}

func loadFiles(db *gorm.DB, postIDs []uint) ([]models.Attachment, error) {
	var files []models.Attachment
	for _, chunk := range utils.ChunkUint(postIDs, inListChunk) {
		var batch []models.Attachment
		if err := db.Where("post_id IN ?", chunk).Order("id").Find(&batch).Error; err != nil {
			return nil, err
		}
		files = append(files, batch...)
	}
	return files, nil
}
