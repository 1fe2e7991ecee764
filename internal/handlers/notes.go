package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/notecrypt"
	"github.com/studyplanner/planner/internal/services"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/types"
)

const (
	defaultRecentNotes = 5
	maxRecentNotes     = 50
)

// NoteHandler provides HTTP handlers for encrypted notes.
type NoteHandler struct {
	notes *services.NoteService
	log   logrus.FieldLogger
}

func NewNoteHandler(notes *services.NoteService, log logrus.FieldLogger) *NoteHandler {
	return &NoteHandler{notes: notes, log: log}
}

// NoteRouter registers note routes. Callers mount it behind RequireAuth.
func NoteRouter(r chi.Router, h *NoteHandler) {
	r.Get("/", h.ListNotes)
	r.Post("/", h.CreateNote)
	r.Get("/recent", h.RecentNotes)
	r.Route("/{title}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Patch("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
	})
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, 0)
}

// RecentNotes returns the most recently updated notes for the dashboard.
func (h *NoteHandler) RecentNotes(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentNotes, maxRecentNotes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.list(w, r, limit)
}

func (h *NoteHandler) list(w http.ResponseWriter, r *http.Request, limit int) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	notes, result, err := h.notes.List(r.Context(), userID, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to list notes")
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{
		Success:    true,
		Notes:      notes,
		Unreadable: result.Failed(),
	})
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	title, err := noteTitleParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.notes.Get(r.Context(), userID, title)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "note not found")
		case notecrypt.IsDecryptionError(err):
			h.log.WithFields(logrus.Fields{"user_id": userID, "title": title}).Warn("note body could not be decrypted")
			writeError(w, http.StatusUnprocessableEntity, "note could not be decrypted")
		default:
			h.log.WithError(err).WithField("user_id", userID).Error("failed to fetch note")
			writeError(w, http.StatusInternalServerError, "failed to fetch note")
		}
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Success: true, Note: note})
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req NoteCreateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.notes.Create(r.Context(), userID, req.Title, req.Body)
	if err != nil {
		h.writeNoteError(w, userID, err, "failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, NoteResponse{Success: true, Note: note})
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	title, err := noteTitleParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req NoteUpdateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, err := h.notes.Update(r.Context(), userID, title, req.Title, req.Body)
	if err != nil {
		h.writeNoteError(w, userID, err, "failed to update note")
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Success: true, Note: note})
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	title, err := noteTitleParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.notes.Delete(r.Context(), userID, title); err != nil {
		h.writeNoteError(w, userID, err, "failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) writeNoteError(w http.ResponseWriter, userID string, err error, message string) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, services.ErrTitleTaken):
		writeError(w, http.StatusConflict, "a note with this title already exists")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	default:
		h.log.WithError(err).WithField("user_id", userID).Error(message)
		writeError(w, http.StatusInternalServerError, message)
	}
}

type NoteCreateRequest struct {
	Title string `json:"title" validate:"required,max=255"`
	Body  string `json:"body"`
}

type NoteUpdateRequest struct {
	Title string `json:"title" validate:"max=255"`
	Body  string `json:"body"`
}

type NoteResponse struct {
	Success bool       `json:"success"`
	Note    types.Note `json:"note"`
}

type NoteListResponse struct {
	Success    bool         `json:"success"`
	Notes      []types.Note `json:"notes"`
	Unreadable int          `json:"unreadable"`
}

func noteTitleParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "title")
	title, err := url.PathUnescape(raw)
	if err != nil || title == "" {
		return "", errors.New("invalid note title")
	}
	return title, nil
}
