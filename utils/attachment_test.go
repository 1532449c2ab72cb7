package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, payload string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func reasons(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Reasons
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{100, 100, 100, 100},
		{320, 240, 320, 240},
		{640, 480, 320, 240},
		{1000, 200, 320, 64},
		{200, 1000, 48, 240},
		{5000, 1, 320, 1},
	}
	for _, tc := range cases {
		w, h := FitWithin(tc.w, tc.h, 320, 240)
		assert.Equal(t, tc.wantW, w, "%dx%d", tc.w, tc.h)
		assert.Equal(t, tc.wantH, h, "%dx%d", tc.w, tc.h)
	}
}

func TestProcessScalesLargeImages(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	out, err := ap.Process(UploadedFile{Filename: "big.png", ContentType: "image/png", Data: pngBytes(t, 800, 400, color.RGBA{R: 200, A: 255})})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJPEG, out.ContentType)
	assert.Equal(t, "big.png", out.Filename)

	b := decodeJPEG(t, out.Data).Bounds()
	assert.Equal(t, 320, b.Dx())
	assert.Equal(t, 160, b.Dy())
}

func TestProcessKeepsSmallImageSize(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	out, err := ap.Process(UploadedFile{Filename: "small.png", ContentType: "image/png", Data: pngBytes(t, 40, 30, color.Black)})
	require.NoError(t, err)
	b := decodeJPEG(t, out.Data).Bounds()
	assert.Equal(t, 40, b.Dx())
	assert.Equal(t, 30, b.Dy())
}

func TestProcessFlattensTransparencyOntoWhite(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	out, err := ap.Process(UploadedFile{Filename: "clear.png", ContentType: "image/png", Data: pngBytes(t, 16, 16, color.NRGBA{})})
	require.NoError(t, err)
	r, g, b, _ := decodeJPEG(t, out.Data).At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestProcessSniffsMissingContentType(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	out, err := ap.Process(UploadedFile{Filename: "noext", ContentType: "application/octet-stream", Data: pngBytes(t, 10, 10, color.White)})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJPEG, out.ContentType)

	out, err = ap.Process(UploadedFile{Filename: "notes.txt", Data: []byte("plain words")})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeText, out.ContentType)
}

func TestProcessRejectsCorruptImage(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	_, err := ap.Process(UploadedFile{Filename: "x.png", ContentType: "image/png", Data: []byte("not an image")})
	assert.Equal(t, []string{"Invalid image file."}, reasons(t, err))
}

func TestProcessRejectsHugeDimensions(t *testing.T) {
	policy := DefaultAttachmentPolicy()
	policy.MaxImagePixels = 100
	ap := NewAttachmentProcessor(policy)

	_, err := ap.Process(UploadedFile{Filename: "x.png", ContentType: "image/png", Data: pngBytes(t, 20, 20, color.White)})
	assert.Equal(t, []string{"Image dimensions are too large."}, reasons(t, err))
}

func TestProcessTextFiles(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	atLimit := []byte(strings.Repeat("a", 100<<10))
	out, err := ap.Process(UploadedFile{Filename: "limit.TXT", ContentType: "text/plain; charset=utf-8", Data: atLimit})
	require.NoError(t, err)
	assert.Equal(t, ContentTypeText, out.ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(atLimit), out.Data)

	_, err = ap.Process(UploadedFile{Filename: "over.txt", ContentType: "text/plain", Data: append(atLimit, 'a')})
	assert.Equal(t, []string{"Text file exceeds the 100KB size limit."}, reasons(t, err))

	_, err = ap.Process(UploadedFile{Filename: "notes.md", ContentType: "text/plain", Data: []byte("x")})
	assert.Equal(t, []string{"Invalid file format. Only TXT files are allowed."}, reasons(t, err))
}

func TestProcessRejectsUnsupportedAndOversized(t *testing.T) {
	ap := NewAttachmentProcessor(DefaultAttachmentPolicy())

	_, err := ap.Process(UploadedFile{Filename: "doc.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")})
	assert.Equal(t, []string{"Unsupported file type."}, reasons(t, err))

	_, err = ap.Process(UploadedFile{Filename: "big.png", ContentType: "image/png", Data: make([]byte, 5<<20+1)})
	assert.Equal(t, []string{"File size exceeds the 5MB limit."}, reasons(t, err))
}
