package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cppla/threadbbs/models"
	"github.com/cppla/threadbbs/utils"
)

// Submission is a create request as entered by a visitor.
type Submission struct {
	Username    string
	Email       string
	HomepageURL string
	Text        string
	ParentID    *uint
	Files       []utils.UploadedFile
}

// Publisher runs a submission through sanitizing and attachment processing
// before handing it to the store.
type Publisher struct {
	posts       *PostService
	sanitizer   *utils.Sanitizer
	attachments *utils.AttachmentProcessor
	maxFiles    int
}

// NewPublisher wires the create pipeline. maxFiles <= 0 means no limit on file count.
func NewPublisher(posts *PostService, sanitizer *utils.Sanitizer, attachments *utils.AttachmentProcessor, maxFiles int) *Publisher {
	return &Publisher{posts: posts, sanitizer: sanitizer, attachments: attachments, maxFiles: maxFiles}
}

// Publish validates the author fields, resolves the parent, processes every file and
// creates the post. Any rejected file aborts the whole submission before anything is written.
func (p *Publisher) Publish(ctx context.Context, sub Submission) (*models.Post, error) {
	in := NewPost{
		Username:    strings.TrimSpace(sub.Username),
		Email:       strings.TrimSpace(sub.Email),
		HomepageURL: strings.TrimSpace(sub.HomepageURL),
		TextHTML:    strings.TrimSpace(p.sanitizer.Sanitize(strings.TrimSpace(sub.Text))),
		ParentID:    sub.ParentID,
	}
	if err := p.posts.ValidateFields(in); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		ok, err := p.posts.ParentExists(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ParentNotFoundError{ID: *in.ParentID}
		}
	}

	if p.maxFiles > 0 && len(sub.Files) > p.maxFiles {
		return nil, utils.NewValidationError(fmt.Sprintf("Too many files. At most %d files are allowed.", p.maxFiles))
	}
	in.Files = make([]utils.EncodedPayload, 0, len(sub.Files))
	for _, f := range sub.Files {
		encoded, err := p.attachments.Process(f)
		if err != nil {
			return nil, err
		}
		in.Files = append(in.Files, *encoded)
	}

	return p.posts.CreatePost(ctx, in)
}
