package autobook_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-autobook/internal/analytics"
	"ms-autobook/internal/auth"
	"ms-autobook/internal/autobook"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
	"ms-autobook/internal/scheduler"
	"ms-autobook/internal/sse"
	"ms-autobook/internal/utils"
)

const keepAliveInterval = 15 * time.Second

type PassTrigger interface {
	Trigger(ctx context.Context, source scheduler.Source, eventIDs []string) (*models.ProcessingSummary, error)
}

type StatsProvider interface {
	EventAutoBookStats(ctx context.Context, eventID string) (*analytics.EventAutoBookStats, error)
}

type Handler struct {
	Service *autobook.Service
	Trigger PassTrigger
	Stats   StatsProvider
	Emitter *sse.ResultEmitter
	Logger  *logger.Logger
}

func NewHandler(service *autobook.Service, trigger PassTrigger, stats StatsProvider, emitter *sse.ResultEmitter, log *logger.Logger) *Handler {
	return &Handler{Service: service, Trigger: trigger, Stats: stats, Emitter: emitter, Logger: log}
}

type processRequest struct {
	EventIDs []string `json:"event_ids"`
}

// RegisterRoutes mounts user routes behind userAuth and operator routes
// behind triggerAuth.
func (h *Handler) RegisterRoutes(r chi.Router, userAuth, triggerAuth func(http.Handler) http.Handler) {
	r.Route("/api/autobooks", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(triggerAuth)
			r.Post("/process", h.Process)
			r.Get("/stats/{eventId}", h.GetStats)
		})

		r.Group(func(r chi.Router) {
			r.Use(userAuth)
			r.Post("/", h.CreateAutoBook)
			r.Get("/", h.ListAutoBooks)
			r.Get("/stream", h.Stream)
			r.Get("/{autoBookId}", h.GetAutoBook)
			r.Delete("/{autoBookId}", h.CancelAutoBook)
		})
	})
}

func (h *Handler) CreateAutoBook(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAutoBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	ab, err := h.Service.Create(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		if utils.StatusFor(err) == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("Create auto-book failed: %v", err))
		}
		utils.WriteError(w, "Failed to create auto-book", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Auto-book created", ab)
}

func (h *Handler) ListAutoBooks(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("List auto-books failed: %v", err))
		utils.WriteError(w, "Failed to list auto-books", err)
		return
	}
	if list == nil {
		list = []models.AutoBook{}
	}
	utils.WriteSuccess(w, http.StatusOK, "auto-books", list)
}

func (h *Handler) GetAutoBook(w http.ResponseWriter, r *http.Request) {
	ab, err := h.Service.Get(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "autoBookId"))
	if err != nil {
		utils.WriteError(w, "Failed to get auto-book", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "auto-book", ab)
}

func (h *Handler) CancelAutoBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "autoBookId")
	if err := h.Service.Cancel(r.Context(), auth.UserID(r.Context()), id); err != nil {
		utils.WriteError(w, "Failed to cancel auto-book", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Auto-book cancelled", map[string]string{"id": id})
}

// Process runs a manual pass, optionally scoped to event_ids, and returns
// its summary. The pass keeps running if the client goes away.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Manual pass requested by %s", auth.UserID(r.Context())))
	summary, err := h.Trigger.Trigger(r.Context(), scheduler.SourceManual, req.EventIDs)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Manual pass failed: %v", err))
		resp := utils.ErrorResponse("Processing pass failed", err.Error())
		resp.Data = summary
		utils.WriteJSON(w, utils.StatusFor(err), resp)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.EventAutoBookStats(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to load auto-book stats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "auto-book stats", stats)
}

// Stream pushes the caller's processed results as server-sent events until
// the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	userID := auth.UserID(r.Context())
	ctx := r.Context()
	results := h.Emitter.Subscribe(ctx, userID)
	h.Logger.Debug("SSE", fmt.Sprintf("Client connected for user %s", userID))

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: connected\ndata: {\"user_id\":%q}\n\n", userID)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(result)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal result %s: %v", result.AutoBookID, err))
				continue
			}
			fmt.Fprintf(w, "event: autobook\ndata: %s\n\n", jsonData)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected for user %s", userID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
