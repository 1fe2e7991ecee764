package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/services"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/types"
)

const (
	defaultUpcomingEvents = 5
	maxUpcomingEvents     = 50
)

// EventHandler provides HTTP handlers for calendar events.
type EventHandler struct {
	events *services.EventService
	log    logrus.FieldLogger
}

func NewEventHandler(events *services.EventService, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{events: events, log: log}
}

// EventRouter registers event routes. Callers mount it behind RequireAuth.
func EventRouter(r chi.Router, h *EventHandler) {
	r.Get("/", h.ListEvents)
	r.Post("/", h.CreateEvent)
	r.Get("/upcoming", h.UpcomingEvents)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Patch("/", h.UpdateEvent)
		r.Delete("/", h.DeleteEvent)
	})
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	events, err := h.events.List(r.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to list events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Success: true, Events: events})
}

func (h *EventHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, err := parseLimit(r, defaultUpcomingEvents, maxUpcomingEvents)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.Upcoming(r.Context(), userID, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to list upcoming events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Success: true, Events: events})
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req EventUpsertRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Create(r.Context(), req.toEvent(userID, 0))
	if err != nil {
		h.writeEventError(w, userID, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, EventResponse{Success: true, Event: event})
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EventUpsertRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.events.Update(r.Context(), req.toEvent(userID, id))
	if err != nil {
		h.writeEventError(w, userID, err, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Success: true, Event: event})
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.events.Delete(r.Context(), userID, id); err != nil {
		h.writeEventError(w, userID, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) writeEventError(w http.ResponseWriter, userID string, err error, message string) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	default:
		h.log.WithError(err).WithField("user_id", userID).Error(message)
		writeError(w, http.StatusInternalServerError, message)
	}
}

type EventUpsertRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
}

func (req EventUpsertRequest) toEvent(userID string, id int64) types.CalendarEvent {
	return types.CalendarEvent{
		ID:          id,
		UserID:      userID,
		Title:       req.Title,
		Start:       req.Start,
		End:         req.End,
		Location:    req.Location,
		Description: req.Description,
	}
}

type EventResponse struct {
	Success bool                `json:"success"`
	Event   types.CalendarEvent `json:"event"`
}

type EventListResponse struct {
	Success bool                  `json:"success"`
	Events  []types.CalendarEvent `json:"events"`
}

func parseEventID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "eventID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid event id")
	}
	return id, nil
}
