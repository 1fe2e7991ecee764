package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/metrics"
	"github.com/studyplanner/planner/internal/notecrypt"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/types"
)

const maxTitleLength = 255

// NoteRepository defines persistence operations for notes.
type NoteRepository interface {
	List(ctx context.Context, userID string, limit int) ([]types.Note, error)
	Get(ctx context.Context, userID, title string) (types.Note, error)
	Create(ctx context.Context, note types.Note) (types.Note, error)
	Update(ctx context.Context, oldTitle string, note types.Note) (types.Note, error)
	Delete(ctx context.Context, userID, title string) error
}

// NoteService encrypts note bodies on the way in and decrypts them on the way
// out. Titles stay in plaintext.
type NoteService struct {
	repo    NoteRepository
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewNoteService(repo NoteRepository, log logrus.FieldLogger, m *metrics.Metrics) *NoteService {
	return &NoteService{repo: repo, log: log, metrics: m}
}

// List returns the user's notes newest first. A note that fails to decrypt is
// returned with notecrypt.Placeholder as its body and Unreadable set; the rest
// of the listing is unaffected.
func (s *NoteService) List(ctx context.Context, userID string, limit int) ([]types.Note, BatchResult, error) {
	notes, err := s.repo.List(ctx, userID, limit)
	if err != nil {
		return nil, BatchResult{}, err
	}

	var result BatchResult
	for i := range notes {
		body, err := notecrypt.Decrypt(notes[i].EncryptedBody, userID)
		if err != nil {
			s.metrics.ObserveDecryptFailure()
			s.log.WithFields(logrus.Fields{
				"user_id": userID,
				"title":   notes[i].Title,
				"error":   err.Error(),
			}).Warn("note body could not be decrypted")
			notes[i].Body = notecrypt.Placeholder
			notes[i].Unreadable = true
			result.fail(i, notes[i].Title, err)
			continue
		}
		notes[i].Body = body
		result.succeed()
	}
	return notes, result, nil
}

// Get returns a single decrypted note. A decryption failure is returned to the
// caller as a *notecrypt.DecryptionError.
func (s *NoteService) Get(ctx context.Context, userID, title string) (types.Note, error) {
	note, err := s.repo.Get(ctx, userID, title)
	if err != nil {
		return types.Note{}, err
	}
	body, err := notecrypt.Decrypt(note.EncryptedBody, userID)
	if err != nil {
		s.metrics.ObserveDecryptFailure()
		return types.Note{}, err
	}
	note.Body = body
	return note, nil
}

func (s *NoteService) Create(ctx context.Context, userID, title, body string) (types.Note, error) {
	title, err := validateTitle(title)
	if err != nil {
		return types.Note{}, err
	}

	encrypted, err := notecrypt.Encrypt(body, userID)
	if err != nil {
		return types.Note{}, err
	}

	note, err := s.repo.Create(ctx, types.Note{
		UserID:        userID,
		Title:         title,
		EncryptedBody: encrypted,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Note{}, ErrTitleTaken
		}
		return types.Note{}, err
	}
	note.Body = body
	return note, nil
}

// Update renames and rewrites the note called oldTitle. An empty newTitle
// keeps the current one.
func (s *NoteService) Update(ctx context.Context, userID, oldTitle, newTitle, body string) (types.Note, error) {
	if strings.TrimSpace(newTitle) == "" {
		newTitle = oldTitle
	}
	newTitle, err := validateTitle(newTitle)
	if err != nil {
		return types.Note{}, err
	}

	encrypted, err := notecrypt.Encrypt(body, userID)
	if err != nil {
		return types.Note{}, err
	}

	note, err := s.repo.Update(ctx, oldTitle, types.Note{
		UserID:        userID,
		Title:         newTitle,
		EncryptedBody: encrypted,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Note{}, ErrTitleTaken
		}
		return types.Note{}, err
	}
	note.Body = body
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, userID, title string) error {
	return s.repo.Delete(ctx, userID, title)
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if len(title) > maxTitleLength {
		return "", &ValidationError{Field: "title", Message: "title is too long"}
	}
	return title, nil
}
