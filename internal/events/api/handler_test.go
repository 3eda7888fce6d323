package events_api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-autobook/internal/auth"
	"ms-autobook/internal/autobook/autobooktest"
	"ms-autobook/internal/clock"
	"ms-autobook/internal/events"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
)

var now = time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// fakeUser stands in for the OIDC middleware.
func fakeUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test-User") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), r.Header.Get("X-Test-User"))))
	})
}

func setup(t *testing.T) (*chi.Mux, *autobooktest.Store) {
	t.Helper()
	store := autobooktest.New()
	store.PutEvent(models.Event{
		ID: "ev-1", Name: "Sunburn Goa", Price: decimal.NewFromInt(3000),
		TicketReleaseTime: now.Add(time.Hour), Status: models.EventComingSoon, IsActive: true,
	})
	store.PutEvent(models.Event{
		ID: "ev-2", Name: "Arijit Singh Live", Price: decimal.NewFromInt(1500),
		TicketReleaseTime: now.Add(-time.Hour), Status: models.EventLive, IsActive: true,
	})

	log := logger.NewWithWriter(io.Discard)
	h := NewHandler(events.NewService(store, log), clock.Fixed(now), log)
	r := chi.NewRouter()
	h.RegisterRoutes(r, fakeUser)
	return r, store
}

func do(r http.Handler, method, path, user string, body []byte) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListEvents(t *testing.T) {
	r, _ := setup(t)

	w, env := do(r, http.MethodGet, "/api/events?status=live", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Event
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ev-2", list[0].ID)

	w, _ = do(r, http.MethodGet, "/api/events?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEvent(t *testing.T) {
	r, _ := setup(t)

	w, env := do(r, http.MethodGet, "/api/events/ev-1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, "Sunburn Goa", ev.Name)

	w, _ = do(r, http.MethodGet, "/api/events/ev-404", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloneEvent(t *testing.T) {
	r, store := setup(t)

	w, _ := do(r, http.MethodPost, "/api/events/ev-2/clone", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(r, http.MethodPost, "/api/events/ev-2/clone", "user-1", []byte(`{"offset_minutes":5}`))
	require.Equal(t, http.StatusCreated, w.Code)
	var clone models.Event
	require.NoError(t, json.Unmarshal(env.Data, &clone))
	assert.Equal(t, "[TEST] Arijit Singh Live (5m)", clone.Name)
	assert.Equal(t, "ev-2", store.Event(clone.ID).ClonedFromID)

	w, _ = do(r, http.MethodPost, "/api/events/ev-2/clone", "user-1", nil)
	assert.Equal(t, http.StatusCreated, w.Code, "empty body uses the default offset")

	w, _ = do(r, http.MethodPost, "/api/events/ev-2/clone", "user-1", []byte(`{"offset_minutes":600}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPost, "/api/events/ev-2/clone", "user-1", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
