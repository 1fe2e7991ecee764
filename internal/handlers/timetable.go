package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/services"
	"github.com/studyplanner/planner/internal/timetable"
	"github.com/studyplanner/planner/types"
)

const syncDateLayout = "2006-01-02"

// TimetableHandler exposes the timetable import.
type TimetableHandler struct {
	imports  *services.ImportService
	location *time.Location
	log      logrus.FieldLogger
}

func NewTimetableHandler(imports *services.ImportService, location *time.Location, log logrus.FieldLogger) *TimetableHandler {
	if location == nil {
		location = time.UTC
	}
	return &TimetableHandler{imports: imports, location: location, log: log}
}

// TimetableRouter registers timetable routes. Callers mount it behind RequireAuth.
func TimetableRouter(r chi.Router, h *TimetableHandler) {
	r.Post("/sync", h.Sync)
}

// Sync fetches the user's portal timetable and stores its sessions as events.
// Portal credentials are used for the one request and never stored or logged.
func (h *TimetableHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TimetableSyncRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var day time.Time
	if date := req.targetDate(); date != "" {
		day, err = time.ParseInLocation(syncDateLayout, date, h.location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	result, err := h.imports.ImportTimetable(r.Context(), services.ImportRequest{
		UserID:   userID,
		Username: req.Username,
		Password: req.Password,
		Date:     day,
	})
	if err != nil {
		var fetchErr *timetable.FetchError
		switch {
		case errors.As(err, &fetchErr):
			writeError(w, http.StatusBadGateway, "failed to fetch timetable")
		case errors.Is(err, timetable.ErrNoEvents):
			writeError(w, http.StatusOK, timetable.NoEventsMessage)
		default:
			h.log.WithError(err).WithField("user_id", userID).Error("timetable import failed")
			writeError(w, http.StatusInternalServerError, "failed to import timetable")
		}
		return
	}

	writeJSON(w, http.StatusOK, TimetableSyncResponse{
		Success:    true,
		Imported:   result.Imported,
		Candidates: result.Candidates,
		Skipped:    result.Skipped,
		Events:     result.Events,
	})
}

type TimetableSyncRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Date     string `json:"date,omitempty"`

	// StartDate is accepted from older clients that post a week range. Only
	// the first day is imported.
	StartDate string `json:"startDate,omitempty"`
}

func (req TimetableSyncRequest) targetDate() string {
	if req.Date != "" {
		return req.Date
	}
	return req.StartDate
}

type TimetableSyncResponse struct {
	Success    bool                `json:"success"`
	Imported   int                 `json:"imported"`
	Candidates int                 `json:"candidates"`
	Skipped    int                 `json:"skipped"`
	Events     []types.ParsedEvent `json:"events"`
}
