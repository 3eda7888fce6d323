package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-autobook/internal/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("auto-book ab-1: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("quantity 9: %w", models.ErrInvalidInput), http.StatusBadRequest},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrDuplicateAutoBook, http.StatusConflict},
		{models.ErrInvalidTransition, http.StatusConflict},
		{models.ErrPassInProgress, http.StatusServiceUnavailable},
		{fmt.Errorf("load: %w: %w", models.ErrStoreUnavailable, errors.New("conn reset")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "Failed to list auto-books", errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "internal error", resp.Error)
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, http.StatusCreated, "created", map[string]string{"id": "ab-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "created", resp.Message)
	assert.Equal(t, map[string]interface{}{"id": "ab-1"}, resp.Data)
}
