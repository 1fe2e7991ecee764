package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/studyplanner/planner/types"
)

// EventRepository defines persistence operations for calendar events.
type EventRepository interface {
	List(ctx context.Context, userID string) ([]types.CalendarEvent, error)
	Upcoming(ctx context.Context, userID string, from time.Time, limit int) ([]types.CalendarEvent, error)
	Get(ctx context.Context, userID string, id int64) (types.CalendarEvent, error)
	Exists(ctx context.Context, userID, title string, start, end time.Time) (bool, error)
	Create(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error)
	Update(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error)
	Delete(ctx context.Context, userID string, id int64) error
}

// EventService encapsulates calendar use-cases.
type EventService struct {
	repo EventRepository
	now  func() time.Time
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{repo: repo, now: time.Now}
}

func (s *EventService) List(ctx context.Context, userID string) ([]types.CalendarEvent, error) {
	return s.repo.List(ctx, userID)
}

// Upcoming returns events that have not finished yet, soonest first.
func (s *EventService) Upcoming(ctx context.Context, userID string, limit int) ([]types.CalendarEvent, error) {
	return s.repo.Upcoming(ctx, userID, s.now(), limit)
}

func (s *EventService) Create(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	event = normalizeEvent(event)
	if err := validateEvent(event); err != nil {
		return types.CalendarEvent{}, err
	}
	return s.repo.Create(ctx, event)
}

func (s *EventService) Update(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	event = normalizeEvent(event)
	if err := validateEvent(event); err != nil {
		return types.CalendarEvent{}, err
	}
	return s.repo.Update(ctx, event)
}

func (s *EventService) Delete(ctx context.Context, userID string, id int64) error {
	return s.repo.Delete(ctx, userID, id)
}

func normalizeEvent(event types.CalendarEvent) types.CalendarEvent {
	event.Title = strings.TrimSpace(event.Title)
	event.Location = trimOptional(event.Location)
	event.Description = trimOptional(event.Description)
	return event
}

func validateEvent(event types.CalendarEvent) error {
	if err := event.Validate(); err != nil {
		field := "event"
		switch {
		case errors.Is(err, types.ErrEventEndsBeforeStart):
			field = "end"
		case event.Title == "":
			field = "title"
		}
		return &ValidationError{Field: field, Message: err.Error()}
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
