// Package storage uploads binary objects (course thumbnails, profile
// pictures, lecture resources) and hands back a stable URL for them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// ObjectURL returns the backend's own URL for key.
	ObjectURL(key string) string
	Bucket() string
}

// Uploader is what the handlers consume: bytes in, URL out. Delete takes
// a URL previously returned by Upload.
type Uploader interface {
	Upload(ctx context.Context, prefix, filename string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

var (
	// ErrEmptyObject is returned when there is nothing to upload.
	ErrEmptyObject = errors.New("object is empty")
	// ErrUnknownURL is returned when a URL does not point into the bucket.
	ErrUnknownURL = errors.New("url is not an object in this bucket")
)

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend       ObjectStorage
	publicBaseURL string
}

// NewStorage constructs a Storage wrapper for the provided backend. When
// publicBaseURL is set, returned URLs are built from it instead of the
// backend's own endpoint.
func NewStorage(backend ObjectStorage, publicBaseURL string) *Storage {
	return &Storage{backend: backend, publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores data under prefix with a fresh key that keeps the
// extension of filename, and returns the object's URL.
func (s *Storage) Upload(ctx context.Context, prefix, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	key := ObjectKey(prefix, filename)
	contentType := http.DetectContentType(data)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the object behind url from the configured bucket.
func (s *Storage) Delete(ctx context.Context, url string) error {
	key, ok := s.keyOf(url)
	if !ok {
		return fmt.Errorf("delete %s: %w", url, ErrUnknownURL)
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// keyOf inverts URL.
func (s *Storage) keyOf(url string) (string, bool) {
	bases := []string{s.backend.ObjectURL("")}
	if s.publicBaseURL != "" {
		bases = append([]string{s.publicBaseURL + "/"}, bases...)
	}
	for _, base := range bases {
		if key, ok := strings.CutPrefix(url, base); ok && key != "" {
			return key, true
		}
	}
	return "", false
}

// URL returns the public URL of key.
func (s *Storage) URL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return s.backend.ObjectURL(key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// ObjectKey builds "<prefix>/<uuid><ext>" from the original file name.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	key := uuid.NewString() + ext
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
