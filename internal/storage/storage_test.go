package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *memBackend) EnsureBucket(context.Context) error { return nil }

func (m *memBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memBackend) ObjectURL(key string) string { return "mem://bucket/" + key }

func (m *memBackend) Bucket() string { return "bucket" }

func TestUpload(t *testing.T) {
	t.Parallel()

	backend := newMemBackend()
	s := NewStorage(backend, "")
	pdf := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 32)...)

	url, err := s.Upload(context.Background(), "resources", "Week 1.PDF", pdf)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "mem://bucket/resources/"), url)
	assert.True(t, strings.HasSuffix(url, ".pdf"), url)

	key := strings.TrimPrefix(url, "mem://bucket/")
	assert.Equal(t, pdf, backend.objects[key])
	assert.Equal(t, "application/pdf", backend.contentTypes[key])
}

func TestUploadPublicBaseURL(t *testing.T) {
	t.Parallel()

	s := NewStorage(newMemBackend(), "https://cdn.example.com/")
	url, err := s.Upload(context.Background(), "thumbnails", "a.png", []byte("data"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/thumbnails/"), url)
}

func TestUploadEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewStorage(newMemBackend(), "").Upload(context.Background(), "x", "a.png", nil)
	assert.ErrorIs(t, err, ErrEmptyObject)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := newMemBackend()
	s := NewStorage(backend, "")

	url, err := s.Upload(ctx, "thumbnails", "a.png", []byte("data"))
	require.NoError(t, err)
	require.Len(t, backend.objects, 1)

	require.NoError(t, s.Delete(ctx, url))
	assert.Empty(t, backend.objects)

	err = s.Delete(ctx, "https://elsewhere.example.com/a.png")
	assert.ErrorIs(t, err, ErrUnknownURL)
}

func TestDeletePublicBaseURL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := newMemBackend()
	s := NewStorage(backend, "https://cdn.example.com")

	url, err := s.Upload(ctx, "profiles", "me.jpg", []byte("data"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, url))
	assert.Empty(t, backend.objects)

	assert.ErrorIs(t, s.Delete(ctx, "https://cdn.example.com/"), ErrUnknownURL)
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	key := ObjectKey("/profiles/", "me.JPG")
	assert.True(t, strings.HasPrefix(key, "profiles/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.NotContains(t, ObjectKey("", "noext"), "/")
}
