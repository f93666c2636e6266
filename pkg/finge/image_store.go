package finge

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize is the largest upload accepted for a scan.
const MaxImageSize = 10 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// StoredImage describes where an uploaded image was written.
type StoredImage struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// ImageStore persists uploaded images.
type ImageStore interface {
	Put(ctx context.Context, img Image) (StoredImage, error)
}

// ValidateImage resolves the content type of img and enforces the size and
// type limits. Octet-stream or missing types are sniffed from the bytes.
func ValidateImage(img Image) (Image, error) {
	if len(img.Data) == 0 {
		return img, NewError(ErrCodeInvalidInput, "image is empty")
	}
	if len(img.Data) > MaxImageSize {
		return img, Errorf(ErrCodeInvalidInput, "image exceeds %d bytes", MaxImageSize)
	}
	contentType := strings.ToLower(strings.TrimSpace(img.ContentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffImageType(img)
	}
	if contentType == "image/jpg" {
		contentType = "image/jpeg"
	}
	if _, ok := imageExtensions[contentType]; !ok {
		return img, Errorf(ErrCodeInvalidInput, "unsupported image type %q", contentType)
	}
	img.ContentType = contentType
	return img, nil
}

func sniffImageType(img Image) string {
	// DetectContentType has no HEIC signature.
	switch strings.ToLower(filepath.Ext(img.Filename)) {
	case ".heic", ".heif":
		return "image/heic"
	}
	return http.DetectContentType(img.Data)
}

// newImageKey returns "<prefix>/<uuid><ext>".
func newImageKey(prefix, contentType string) string {
	name := uuid.NewString() + imageExtensions[contentType]
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

type localImageStore struct {
	dir string
}

// NewLocalImageStore stores images as files under dir.
func NewLocalImageStore(dir string) ImageStore {
	return &localImageStore{dir: dir}
}

func (s *localImageStore) Put(ctx context.Context, img Image) (StoredImage, error) {
	if err := ctx.Err(); err != nil {
		return StoredImage{}, err
	}
	key := newImageKey("", img.ContentType)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return StoredImage{}, WrapError(ErrCodeInternal, "create image dir", err)
	}
	target := filepath.Join(s.dir, key)
	if err := os.WriteFile(target, img.Data, 0o644); err != nil {
		return StoredImage{}, WrapError(ErrCodeInternal, "write image", err)
	}
	return StoredImage{
		Key:         key,
		URL:         "file://" + filepath.ToSlash(target),
		ContentType: img.ContentType,
		Size:        len(img.Data),
	}, nil
}
