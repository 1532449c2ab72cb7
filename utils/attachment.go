package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"math"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

// Content types the processor accepts.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypeGIF  = "image/gif"
	ContentTypePNG  = "image/png"
	ContentTypeText = "text/plain"
)

// AttachmentPolicy holds the limits applied to every uploaded file.
type AttachmentPolicy struct {
	MaxFileBytes   int
	MaxTextBytes   int
	MaxImageWidth  int
	MaxImageHeight int
	// MaxImagePixels rejects images whose decoded bitmap would be too large.
	MaxImagePixels int
	JPEGQuality    int
}

// DefaultAttachmentPolicy is 5MB per file, 100KB text files and 320x240 images.
func DefaultAttachmentPolicy() AttachmentPolicy {
	return AttachmentPolicy{
		MaxFileBytes:   5 << 20,
		MaxTextBytes:   100 << 10,
		MaxImageWidth:  320,
		MaxImageHeight: 240,
		MaxImagePixels: 40_000_000,
		JPEGQuality:    85,
	}
}

// UploadedFile is a file as received from the client.
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EncodedPayload is a validated file ready to be stored.
type EncodedPayload struct {
	Filename    string
	ContentType string
	Data        string
}

// AttachmentProcessor validates, normalizes and encodes uploads.
type AttachmentProcessor struct {
	policy AttachmentPolicy
}

// NewAttachmentProcessor returns a processor enforcing policy.
func NewAttachmentProcessor(policy AttachmentPolicy) *AttachmentProcessor {
	return &AttachmentProcessor{policy: policy}
}

// ReadUpload reads a multipart file, never buffering more than one byte past the size limit
// so that oversized files are still detected by Process.
func (ap *AttachmentProcessor) ReadUpload(fh *multipart.FileHeader) (UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return UploadedFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(ap.policy.MaxFileBytes)+1))
	if err != nil {
		return UploadedFile{}, err
	}
	return UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// Process checks the file against the policy and returns its encoded form.
// Rejections are *ValidationError values.
func (ap *AttachmentProcessor) Process(file UploadedFile) (*EncodedPayload, error) {
	if len(file.Data) > ap.policy.MaxFileBytes {
		return nil, NewValidationError(fmt.Sprintf("File size exceeds the %s limit.", humanSize(ap.policy.MaxFileBytes)))
	}

	switch declaredType(file) {
	case ContentTypeJPEG, ContentTypeGIF, ContentTypePNG:
		data, err := ap.normalizeImage(file.Data)
		if err != nil {
			return nil, err
		}
		return &EncodedPayload{Filename: file.Filename, ContentType: ContentTypeJPEG, Data: data}, nil
	case ContentTypeText:
		if len(file.Data) > ap.policy.MaxTextBytes {
			return nil, NewValidationError(fmt.Sprintf("Text file exceeds the %s size limit.", humanSize(ap.policy.MaxTextBytes)))
		}
		if !strings.HasSuffix(strings.ToLower(file.Filename), ".txt") {
			return nil, NewValidationError("Invalid file format. Only TXT files are allowed.")
		}
		return &EncodedPayload{
			Filename:    file.Filename,
			ContentType: ContentTypeText,
			Data:        base64.StdEncoding.EncodeToString(file.Data),
		}, nil
	default:
		return nil, NewValidationError("Unsupported file type.")
	}
}

// normalizeImage scales the image into the bounding box, flattens transparency onto white
// and re-encodes it as base64 JPEG.
func (ap *AttachmentProcessor) normalizeImage(data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", NewValidationError("Invalid image file.")
	}
	if ap.policy.MaxImagePixels > 0 && cfg.Width*cfg.Height > ap.policy.MaxImagePixels {
		return "", NewValidationError("Image dimensions are too large.")
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", NewValidationError("Invalid image file.")
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), ap.policy.MaxImageWidth, ap.policy.MaxImageHeight)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ap.policy.JPEGQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// FitWithin returns the largest size with the aspect ratio of w x h that fits into
// maxW x maxH. Images already inside the box are returned unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return clamp(nw, 1, maxW), clamp(nh, 1, maxH)
}

// declaredType strips media type parameters; missing or generic types are sniffed.
func declaredType(file UploadedFile) string {
	ct := strings.TrimSpace(file.ContentType)
	if ct == "" || strings.EqualFold(ct, "application/octet-stream") {
		ct = mimetype.Detect(file.Data).String()
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(ct)
	}
	return mediaType
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
