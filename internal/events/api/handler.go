package events_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-autobook/internal/auth"
	"ms-autobook/internal/clock"
	"ms-autobook/internal/events"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
	"ms-autobook/internal/utils"
)

type Handler struct {
	Service *events.Service
	Clock   clock.Clock
	Logger  *logger.Logger
}

func NewHandler(service *events.Service, clk clock.Clock, log *logger.Logger) *Handler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Handler{Service: service, Clock: clk, Logger: log}
}

type cloneRequest struct {
	OffsetMinutes int `json:"offset_minutes"`
}

// RegisterRoutes mounts the public event reads and the authenticated clone
// endpoint.
func (h *Handler) RegisterRoutes(r chi.Router, userAuth func(http.Handler) http.Handler) {
	r.Route("/api/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{eventId}", h.GetEvent)
		r.With(userAuth).Post("/{eventId}/clone", h.CloneEvent)
	})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	status := models.EventStatus(r.URL.Query().Get("status"))
	list, err := h.Service.List(r.Context(), status)
	if err != nil {
		h.Logger.Error("EVENTS", fmt.Sprintf("List events failed: %v", err))
		utils.WriteError(w, "Failed to list events", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "events", list)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Service.Get(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to get event", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "event", ev)
}

func (h *Handler) CloneEvent(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, "Invalid request body", fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return
	}

	eventID := chi.URLParam(r, "eventId")
	clone, err := h.Service.CloneForTesting(r.Context(), eventID, req.OffsetMinutes, h.Clock.Now())
	if err != nil {
		h.Logger.Warn("EVENTS", fmt.Sprintf("Clone of %s by %s failed: %v", eventID, auth.UserID(r.Context()), err))
		utils.WriteError(w, "Failed to create test event", err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated,
		fmt.Sprintf("Test event created. Tickets will release at %s.", clone.TicketReleaseTime.Format(time.RFC3339)), clone)
}
