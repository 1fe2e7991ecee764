package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/metrics"
	"github.com/studyplanner/planner/internal/notecrypt"
	"github.com/studyplanner/planner/internal/storage"
	"github.com/studyplanner/planner/internal/timetable"
	"github.com/studyplanner/planner/types"
)

// DefaultEventTitle is used for a timetabled session without a module name.
const DefaultEventTitle = "Timetabled session"

const (
	importOutcomeSuccess  = "success"
	importOutcomeNoEvents = "no_events"
	importOutcomeFetch    = "fetch_failed"
	importOutcomeError    = "error"
)

// TimetableFetcher retrieves the raw timetable page for a portal account.
type TimetableFetcher interface {
	Fetch(ctx context.Context, creds timetable.Credentials) (string, error)
}

// ImportEventStore is the subset of event persistence an import needs.
type ImportEventStore interface {
	Create(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error)
	Exists(ctx context.Context, userID, title string, start, end time.Time) (bool, error)
}

// SnapshotStore archives raw timetable pages.
type SnapshotStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Publisher announces completed imports.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ImportConfig controls optional import behaviour.
type ImportConfig struct {
	Location    *time.Location
	Deduplicate bool
	Channel     string
	Snapshots   SnapshotStore
	Publisher   Publisher
	Now         func() time.Time
}

// ImportRequest identifies whose timetable to fetch and for which day.
type ImportRequest struct {
	UserID   string
	Username string
	Password string
	Date     time.Time
}

// ImportResult reports how many of the parsed candidates were stored.
type ImportResult struct {
	Success    bool                `json:"success"`
	Imported   int                 `json:"imported"`
	Candidates int                 `json:"candidates"`
	Skipped    int                 `json:"skipped"`
	Events     []types.ParsedEvent `json:"events"`
	Errors     []ItemError         `json:"-"`
}

// ImportedMessage is published on the import channel after each import.
type ImportedMessage struct {
	UserID     string    `json:"user_id"`
	Imported   int       `json:"imported"`
	Candidates int       `json:"candidates"`
	ImportedAt time.Time `json:"imported_at"`
}

// ImportService turns a user's portal timetable into calendar events.
type ImportService struct {
	fetcher TimetableFetcher
	events  ImportEventStore
	cfg     ImportConfig
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewImportService(fetcher TimetableFetcher, events ImportEventStore, cfg ImportConfig, log logrus.FieldLogger, m *metrics.Metrics) *ImportService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ImportService{fetcher: fetcher, events: events, cfg: cfg, log: log, metrics: m}
}

// ImportTimetable fetches, parses and stores the timetable for req.Date. A
// fetch failure is returned as *timetable.FetchError. A page without events
// returns timetable.ErrNoEvents. Events that fail to persist are recorded in
// the result and do not fail the import.
func (s *ImportService) ImportTimetable(ctx context.Context, req ImportRequest) (ImportResult, error) {
	log := s.log.WithField("user_id", req.UserID)

	page, err := s.fetcher.Fetch(ctx, timetable.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		s.metrics.ObserveImport(importOutcomeFetch, 0, 0)
		var fetchErr *timetable.FetchError
		if errors.As(err, &fetchErr) {
			log.WithField("reason", string(fetchErr.Reason)).Warn("timetable fetch failed")
		}
		return ImportResult{}, err
	}

	parsed, err := timetable.Parse(page)
	if err != nil {
		if errors.Is(err, timetable.ErrNoEvents) {
			s.metrics.ObserveImport(importOutcomeNoEvents, 0, 0)
		} else {
			s.metrics.ObserveImport(importOutcomeError, 0, 0)
		}
		return ImportResult{}, err
	}

	day := req.Date
	if day.IsZero() {
		day = s.cfg.Now()
	}
	day = day.In(s.cfg.Location)

	var batch BatchResult
	for i, ev := range parsed.Events {
		event, err := s.toCalendarEvent(req.UserID, day, ev)
		if err != nil {
			batch.fail(i, ev.Module, err)
			log.WithFields(logrus.Fields{"index": i, "error": err.Error()}).Warn("skipping invalid timetable event")
			continue
		}

		if s.cfg.Deduplicate {
			exists, err := s.events.Exists(ctx, req.UserID, event.Title, event.Start, event.End)
			if err != nil {
				batch.fail(i, event.Title, err)
				log.WithFields(logrus.Fields{"index": i, "error": err.Error()}).Warn("duplicate check failed")
				continue
			}
			if exists {
				batch.skip()
				continue
			}
		}

		if _, err := s.events.Create(ctx, event); err != nil {
			batch.fail(i, event.Title, err)
			log.WithFields(logrus.Fields{"index": i, "title": event.Title, "error": err.Error()}).Warn("failed to store timetable event")
			continue
		}
		batch.succeed()
	}

	result := ImportResult{
		Success:    true,
		Imported:   batch.Succeeded,
		Candidates: len(parsed.Events),
		Skipped:    batch.Skipped,
		Events:     parsed.Events,
		Errors:     batch.Errors,
	}
	s.metrics.ObserveImport(importOutcomeSuccess, batch.Succeeded, batch.Failed())
	log.WithFields(logrus.Fields{
		"imported":   result.Imported,
		"candidates": result.Candidates,
		"skipped":    result.Skipped,
		"failed":     batch.Failed(),
	}).Info("timetable imported")

	s.archive(ctx, log, req.UserID, page)
	s.announce(ctx, log, result, req.UserID)
	return result, nil
}

func (s *ImportService) toCalendarEvent(userID string, day time.Time, ev types.ParsedEvent) (types.CalendarEvent, error) {
	start, err := atClock(day, ev.Start, s.cfg.Location)
	if err != nil {
		return types.CalendarEvent{}, err
	}
	end, err := atClock(day, ev.End, s.cfg.Location)
	if err != nil {
		return types.CalendarEvent{}, err
	}

	title := strings.TrimSpace(ev.Module)
	if title == "" {
		title = DefaultEventTitle
	}

	event := types.CalendarEvent{
		UserID: userID,
		Title:  title,
		Start:  start,
		End:    end,
	}
	if ev.Location != "" {
		location := ev.Location
		event.Location = &location
	}
	if ev.Description != "" {
		description := ev.Description
		event.Description = &description
	}
	if err := event.Validate(); err != nil {
		return types.CalendarEvent{}, err
	}
	return event, nil
}

// atClock places an HH:MM wall-clock time on the given day.
func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}

func (s *ImportService) archive(ctx context.Context, log logrus.FieldLogger, userID, page string) {
	if s.cfg.Snapshots == nil {
		return
	}
	sealed, err := notecrypt.Encrypt(page, userID)
	if err != nil {
		log.WithError(err).Warn("failed to encrypt timetable snapshot")
		return
	}
	key := storage.SnapshotKey(userID, s.cfg.Now())
	data := []byte(sealed)
	if err := s.cfg.Snapshots.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "text/plain"); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to store timetable snapshot")
	}
}

func (s *ImportService) announce(ctx context.Context, log logrus.FieldLogger, result ImportResult, userID string) {
	if s.cfg.Publisher == nil || s.cfg.Channel == "" {
		return
	}
	payload, err := json.Marshal(ImportedMessage{
		UserID:     userID,
		Imported:   result.Imported,
		Candidates: result.Candidates,
		ImportedAt: s.cfg.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("failed to encode import notification")
		return
	}
	if _, err := s.cfg.Publisher.Publish(ctx, s.cfg.Channel, payload, map[string]string{"user_id": userID}); err != nil {
		log.WithError(err).Warn("failed to publish import notification")
	}
}
