package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/cppla/threadbbs/services"
	"github.com/cppla/threadbbs/utils"
)

const (
	listCachePrefix   = "cache:posts:list:"
	detailCachePrefix = "cache:post:detail:"
	// matches both prefixes above
	postCachePrefix = "cache:post"
	// PostsGeneration names the counter embedded in every post cache key.
	PostsGeneration = "posts"
)

var errMalformed = errors.New("malformed request")

// PostController serves post creation, listing and detail endpoints.
type PostController struct {
	posts           *services.PostService
	publisher       *services.Publisher
	uploads         *utils.AttachmentProcessor
	captcha         utils.CaptchaVerifier
	cache           *utils.Cache
	maxRequestBytes int64
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *services.PostService, publisher *services.Publisher, uploads *utils.AttachmentProcessor,
	captcha utils.CaptchaVerifier, cache *utils.Cache, maxRequestBytes int64) *PostController {
	return &PostController{
		posts:           posts,
		publisher:       publisher,
		uploads:         uploads,
		captcha:         captcha,
		cache:           cache,
		maxRequestBytes: maxRequestBytes,
	}
}

// createRequest is the create payload after transport decoding.
type createRequest struct {
	Username      string
	Email         string
	HomepageURL   string
	TextHTML      string
	ParentID      string
	CaptchaID     string
	CaptchaAnswer string
	Files         []*multipart.FileHeader
}

type createJSON struct {
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	HomepageURL   string          `json:"homepage_url"`
	TextHTML      string          `json:"text_html"`
	ParentID      json.RawMessage `json:"parent_id"`
	CaptchaID     string          `json:"captcha_id"`
	CaptchaAnswer string          `json:"captcha_answer"`
	Captcha0      string          `json:"captcha_0"`
	Captcha1      string          `json:"captcha_1"`
}

type fileSummary struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// CreatePost accepts a new root post or reply with optional files.
func (p *PostController) CreatePost(ctx *gin.Context) {
	if p.maxRequestBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, p.maxRequestBytes)
	}

	req, err := readCreateRequest(ctx)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Invalid(ctx, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		utils.Invalid(ctx, errMalformed.Error())
		return
	}

	if !p.captcha.Verify(strings.TrimSpace(req.CaptchaID), strings.TrimSpace(req.CaptchaAnswer)) {
		utils.Invalid(ctx, "Invalid CAPTCHA. Please try again.")
		return
	}

	parentID, err := parseParentID(req.ParentID)
	if err != nil {
		utils.Invalid(ctx, "parent_id must be a positive integer")
		return
	}

	sub := services.Submission{
		Username:    req.Username,
		Email:       req.Email,
		HomepageURL: req.HomepageURL,
		Text:        req.TextHTML,
		ParentID:    parentID,
		Files:       make([]utils.UploadedFile, 0, len(req.Files)),
	}
	for _, fh := range req.Files {
		f, err := p.uploads.ReadUpload(fh)
		if err != nil {
			utils.Sugar.Warnf("read upload %q failed: %v", fh.Filename, err)
			utils.Invalid(ctx, fmt.Sprintf("could not read file %s", fh.Filename))
			return
		}
		sub.Files = append(sub.Files, f)
	}

	post, err := p.publisher.Publish(ctx.Request.Context(), sub)
	if err != nil {
		p.fail(ctx, "create post", err)
		return
	}

	InvalidatePosts(ctx.Request.Context(), p.cache)
	utils.Logger.Info("post created",
		zap.Uint("post_id", post.ID),
		zap.Uintp("parent_id", post.ParentID),
		zap.Int("files", len(post.Files)),
	)

	files := make([]fileSummary, 0, len(post.Files))
	for _, f := range post.Files {
		files = append(files, fileSummary{Filename: f.Filename, ContentType: f.ContentType})
	}
	utils.Respond(ctx, http.StatusCreated, gin.H{
		"message":   "Post created successfully.",
		"post_id":   post.ID,
		"parent_id": post.ParentID,
		"files":     files,
	})
}

// ListPosts returns a page of root posts with their reply trees.
func (p *PostController) ListPosts(ctx *gin.Context) {
	q, reasons := parseListQuery(ctx)
	if len(reasons) > 0 {
		utils.Invalid(ctx, reasons...)
		return
	}
	q, err := p.posts.NormalizeListQuery(q)
	if err != nil {
		p.fail(ctx, "list posts", err)
		return
	}

	// the generation is read before querying so a result computed before a
	// write can only land under a key nobody reads any more
	gen, cacheable := p.cache.Generation(ctx.Request.Context(), PostsGeneration)
	cacheKey := fmt.Sprintf("%sv%d:page=%d:limit=%d:sort=%s:%s", listCachePrefix, gen, q.Page, q.Limit, q.SortBy, q.SortOrder)
	if cacheable {
		if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	result, err := p.posts.ListRoots(ctx.Request.Context(), q)
	if err != nil {
		p.fail(ctx, "list posts", err)
		return
	}
	if cacheable {
		p.cache.SetJSON(ctx.Request.Context(), cacheKey, result)
	}
	utils.Respond(ctx, http.StatusOK, result)
}

// GetPost returns one post with its full reply tree.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Invalid(ctx, "post id must be a positive integer")
		return
	}

	gen, cacheable := p.cache.Generation(ctx.Request.Context(), PostsGeneration)
	cacheKey := fmt.Sprintf("%sv%d:%d", detailCachePrefix, gen, id)
	if cacheable {
		if b, ok := p.cache.GetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
			return
		}
	}

	post, err := p.posts.GetPost(ctx.Request.Context(), uint(id))
	if err != nil {
		p.fail(ctx, "get post", err)
		return
	}
	view, err := p.posts.Serialize(ctx.Request.Context(), *post)
	if err != nil {
		p.fail(ctx, "serialize post", err)
		return
	}
	payload := gin.H{"post": view}
	if cacheable {
		p.cache.SetJSON(ctx.Request.Context(), cacheKey, payload)
	}
	utils.Respond(ctx, http.StatusOK, payload)
}

// InvalidatePosts retires every cached list and detail response after a write.
// Bumping the generation is what makes stale entries unreachable; the prefix
// sweep only frees their memory early.
func InvalidatePosts(ctx context.Context, cache *utils.Cache) {
	cache.Bump(ctx, PostsGeneration)
	cache.InvalidateByPrefix(ctx, postCachePrefix)
}

// fail maps service errors onto HTTP responses.
func (p *PostController) fail(ctx *gin.Context, op string, err error) {
	var invalid *utils.ValidationError
	var missingParent *services.ParentNotFoundError
	switch {
	case errors.As(err, &invalid):
		utils.Invalid(ctx, invalid.Reasons...)
	case errors.As(err, &missingParent):
		utils.Error(ctx, http.StatusNotFound, missingParent.Error())
	case errors.Is(err, services.ErrPostNotFound):
		utils.Error(ctx, http.StatusNotFound, err.Error())
	default:
		utils.Logger.Error(op+" failed", zap.Error(err), zap.String("path", ctx.Request.URL.Path))
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func readCreateRequest(ctx *gin.Context) (createRequest, error) {
	switch ctx.ContentType() {
	case binding.MIMEJSON:
		var body createJSON
		if err := json.NewDecoder(ctx.Request.Body).Decode(&body); err != nil {
			return createRequest{}, err
		}
		parent, err := rawParentID(body.ParentID)
		if err != nil {
			return createRequest{}, err
		}
		return createRequest{
			Username:      body.Username,
			Email:         body.Email,
			HomepageURL:   body.HomepageURL,
			TextHTML:      body.TextHTML,
			ParentID:      parent,
			CaptchaID:     firstNonEmpty(body.CaptchaID, body.Captcha0),
			CaptchaAnswer: firstNonEmpty(body.CaptchaAnswer, body.Captcha1),
		}, nil
	case binding.MIMEMultipartPOSTForm:
		form, err := ctx.MultipartForm()
		if err != nil {
			return createRequest{}, err
		}
		req := formRequest(ctx)
		req.Files = form.File["files"]
		return req, nil
	case binding.MIMEPOSTForm:
		if err := ctx.Request.ParseForm(); err != nil {
			return createRequest{}, err
		}
		return formRequest(ctx), nil
	default:
		return createRequest{}, errMalformed
	}
}

func formRequest(ctx *gin.Context) createRequest {
	return createRequest{
		Username:      ctx.PostForm("username"),
		Email:         ctx.PostForm("email"),
		HomepageURL:   ctx.PostForm("homepage_url"),
		TextHTML:      ctx.PostForm("text_html"),
		ParentID:      ctx.PostForm("parent_id"),
		CaptchaID:     firstNonEmpty(ctx.PostForm("captcha_id"), ctx.PostForm("captcha_0")),
		CaptchaAnswer: firstNonEmpty(ctx.PostForm("captcha_answer"), ctx.PostForm("captcha_1")),
	}
}

// rawParentID accepts a JSON number, a numeric string or null.
func rawParentID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// parseParentID treats "", "null" and "none" as no parent.
func parseParentID(raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "none":
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid parent_id %q", raw)
	}
	parent := uint(id)
	return &parent, nil
}

// parseListQuery reads pagination and sorting; absent parameters stay zero.
func parseListQuery(ctx *gin.Context) (services.ListQuery, []string) {
	var reasons []string
	q := services.ListQuery{
		SortBy:    ctx.Query("sort_by"),
		SortOrder: ctx.Query("sort_order"),
	}
	if v := strings.TrimSpace(ctx.Query("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			reasons = append(reasons, "page must be a positive integer")
		} else {
			q.Page = n
		}
	}
	if v := strings.TrimSpace(ctx.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			reasons = append(reasons, "limit must be a positive integer")
		} else {
			q.Limit = n
		}
	}
	return q, reasons
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
