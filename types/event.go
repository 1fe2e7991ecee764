package types

import (
	"errors"
	"time"
)

// ErrEventEndsBeforeStart is returned when an event's end precedes its start.
var ErrEventEndsBeforeStart = errors.New("event end is before start")

// CalendarEvent is a user-owned calendar entry. Events are not encrypted.
type CalendarEvent struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"-" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Start       time.Time `json:"start" db:"start_time"`
	End         time.Time `json:"end" db:"end_time"`
	Location    *string   `json:"location,omitempty" db:"location"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Validate checks the invariants that must hold before persistence.
func (e CalendarEvent) Validate() error {
	if e.Title == "" {
		return errors.New("event title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return errors.New("event start and end are required")
	}
	if e.End.Before(e.Start) {
		return ErrEventEndsBeforeStart
	}
	return nil
}

// ParsedEvent is one timetable slot extracted from the portal page. It is
// transient: the import turns it into a CalendarEvent and drops it.
type ParsedEvent struct {
	// Start and End are wall-clock "HH:MM" strings as printed by the portal.
	Start string `json:"start"`
	End   string `json:"end"`

	Module   string `json:"module"`
	Room     string `json:"room"`
	Location string `json:"location"`
	Lecturer string `json:"lecturer"`
	Session  string `json:"session_type"`
	Group    string `json:"group"`

	// Description summarises the slot as "Session | Lecturer | Group: X",
	// leaving out the parts the portal did not print.
	Description string `json:"description"`
}
