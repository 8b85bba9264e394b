package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/course-pilot/apiserver/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{errs.Validationf("bad"), http.StatusBadRequest},
		{errs.New(errs.ErrUnauthorized, "nope"), http.StatusUnauthorized},
		{errs.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("mark complete: %w", errs.ErrNotEnrolled), http.StatusForbidden},
		{fmt.Errorf("course c1: %w", errs.NotFoundf("course not found")), http.StatusNotFound},
		{errs.ErrAlreadyEnrolled, http.StatusConflict},
		{errs.Conflictf("email already registered"), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromError(tt.err), "%v", tt.err)
	}
}

func TestRespondErrorHidesInternalFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(rec, req, zap.New(core), "get course", errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "internal server error", body.Message)

	entries := logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "get course", entries[0].ContextMap()["op"])
}

func TestRespondErrorUsesKindMessage(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodPost, "/", nil), zap.NewNop(), "enroll", errs.ErrAlreadyEnrolled)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "already enrolled in this course", body.Message)
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query   string
		page    int
		limit   int
		offset  int
		wantErr bool
	}{
		{"", 1, defaultLimit, 0, false},
		{"page=3&limit=10", 3, 10, 20, false},
		{"limit=500", 1, maxLimit, 0, false},
		{"page=0", 0, 0, 0, true},
		{"limit=abc", 0, 0, 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		page, limit, offset, err := parsePagination(req)
		if tt.wantErr {
			assert.ErrorIs(t, err, errs.ErrValidation, tt.query)
			continue
		}
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
		assert.Equal(t, tt.offset, offset, tt.query)
	}
}

func TestReadFileLimited(t *testing.T) {
	t.Parallel()

	data, err := readFileLimited(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = readFileLimited(strings.NewReader("hello!"), 5)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = readFileLimited(bytes.NewReader(nil), 5)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestIsPDF(t *testing.T) {
	t.Parallel()

	assert.True(t, isPDF(uploadedFile{Filename: "notes.bin", Data: []byte("%PDF-1.7\n")}))
	assert.False(t, isPDF(uploadedFile{Filename: "notes.pdf", Data: []byte("plain text")}))
}
