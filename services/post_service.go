package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

// ErrPostNotFound is returned when a post id does not resolve.
var ErrPostNotFound = errors.New("post not found")

// ParentNotFoundError reports a reply whose parent does not exist.
type ParentNotFoundError struct {
	ID uint
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("Parent post with id=%d not found.", e.ID)
}

// NewPost is the input of CreatePost. TextHTML must already be sanitized.
type NewPost struct {
	Username    string                 `json:"username" validate:"required,max=18,alphanum"`
	Email       string                 `json:"email" validate:"required,email"`
	HomepageURL string                 `json:"homepage_url" validate:"omitempty,max=200,http_url"`
	TextHTML    string                 `json:"text_html" validate:"required"`
	ParentID    *uint                  `json:"parent_id" validate:"-"`
	Files       []utils.EncodedPayload `json:"-" validate:"-"`
}

// PostService owns posts and their attachments.
type PostService struct {
	db           *gorm.DB
	validate     *validator.Validate
	defaultLimit int
	maxLimit     int
}

// NewPostService creates a PostService. Listing uses defaultLimit items per page and
// refuses pages larger than maxLimit.
func NewPostService(db *gorm.DB, defaultLimit, maxLimit int) *PostService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if defaultLimit <= 0 {
		defaultLimit = 25
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &PostService{db: db, validate: v, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// ValidateFields checks the author fields and body, reporting every failing field.
func (s *PostService) ValidateFields(in NewPost) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	reasons := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		reasons = append(reasons, fieldMessage(fe))
	}
	return utils.NewValidationError(reasons...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "alphanum":
		return fe.Field() + " must contain only latin letters and digits"
	case "email":
		return "invalid email format"
	case "http_url":
		return "invalid " + fe.Field() + " format"
	default:
		return fe.Field() + " is invalid"
	}
}

// ParentExists reports whether a post with id exists.
func (s *PostService) ParentExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreatePost persists the post and its attachments in one transaction.
func (s *PostService) CreatePost(ctx context.Context, in NewPost) (*models.Post, error) {
	if err := s.ValidateFields(in); err != nil {
		return nil, err
	}

	post := models.Post{
		Username: in.Username,
		Email:    in.Email,
		TextHTML: in.TextHTML,
		ParentID: in.ParentID,
	}
	if in.HomepageURL != "" {
		url := in.HomepageURL
		post.HomepageURL = &url
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			var parent models.Post
			if err := tx.Select("id").First(&parent, *in.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ParentNotFoundError{ID: *in.ParentID}
				}
				return err
			}
		}
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		if len(in.Files) == 0 {
			return nil
		}
		files := make([]models.Attachment, 0, len(in.Files))
		for _, f := range in.Files {
			files = append(files, models.Attachment{
				PostID:      post.ID,
				Filename:    f.Filename,
				ContentType: f.ContentType,
				Payload:     f.Data,
			})
		}
		if err := tx.Create(&files).Error; err != nil {
			return err
		}
		post.Files = files
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// GetPost loads a single post without its replies.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeletePost removes the post, its whole reply subtree and every attachment of those posts.
// It returns the number of posts deleted.
func (s *PostService) DeletePost(ctx context.Context, id uint) (int, error) {
	var deleted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Post
		if err := tx.Select("id").First(&root, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		descendants, err := loadDescendants(tx, []uint{id}, "id", "parent_id")
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(descendants)+1)
		ids = append(ids, id)
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}
		for _, chunk := range utils.ChunkUint(ids, inListChunk) {
			if err := tx.Where("post_id IN ?", chunk).Delete(&models.Attachment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", chunk).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		deleted = len(ids)
		return nil
	})
	return deleted, err
}

// Stats holds aggregate counters.
type Stats struct {
	PostCount       int64 `json:"post_count"`
	RootCount       int64 `json:"root_count"`
	ReplyCount      int64 `json:"reply_count"`
	AttachmentCount int64 `json:"attachment_count"`
}

// Stats counts posts, root posts and attachments.
func (s *PostService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Count(&st.PostCount).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Post{}).Where("parent_id IS NULL").Count(&st.RootCount).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&models.Attachment{}).Count(&st.AttachmentCount).Error; err != nil {
		return Stats{}, err
	}
	st.ReplyCount = st.PostCount - st.RootCount
	return st, nil
}
