package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/studyplanner/planner/types"
)

// EventRepository handles persistence for calendar events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, user_id, title, start_time, end_time, location, description, created_at`

// List returns the user's events in start order.
func (r *EventRepository) List(ctx context.Context, userID string) ([]types.CalendarEvent, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1
		ORDER BY start_time ASC`
	return r.query(ctx, query, userID)
}

// Upcoming returns at most limit events that have not ended before from.
func (r *EventRepository) Upcoming(ctx context.Context, userID string, from time.Time, limit int) ([]types.CalendarEvent, error) {
	if limit < 1 {
		limit = 5
	}
	const query = `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1 AND end_time >= $2
		ORDER BY start_time ASC
		LIMIT $3`
	return r.query(ctx, query, userID, from, limit)
}

func (r *EventRepository) Get(ctx context.Context, userID string, id int64) (types.CalendarEvent, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM calendar_events
		WHERE user_id = $1 AND id = $2`
	var event types.CalendarEvent
	err := r.db.QueryRowContext(ctx, query, userID, id).Scan(
		&event.ID,
		&event.UserID,
		&event.Title,
		&event.Start,
		&event.End,
		&event.Location,
		&event.Description,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CalendarEvent{}, ErrNotFound
		}
		return types.CalendarEvent{}, err
	}
	return event, nil
}

// Exists reports whether the user already has an event with the same title
// and time span.
func (r *EventRepository) Exists(ctx context.Context, userID, title string, start, end time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM calendar_events
			WHERE user_id = $1 AND title = $2 AND start_time = $3 AND end_time = $4
		)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, title, start, end).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EventRepository) Create(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	event.CreatedAt = time.Now()

	const query = `
		INSERT INTO calendar_events (user_id, title, start_time, end_time, location, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.UserID,
		event.Title,
		event.Start,
		event.End,
		event.Location,
		event.Description,
		event.CreatedAt,
	).Scan(&event.ID); err != nil {
		return types.CalendarEvent{}, err
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, event types.CalendarEvent) (types.CalendarEvent, error) {
	const query = `
		UPDATE calendar_events
		SET title = $1,
			start_time = $2,
			end_time = $3,
			location = $4,
			description = $5
		WHERE user_id = $6 AND id = $7
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		event.Title,
		event.Start,
		event.End,
		event.Location,
		event.Description,
		event.UserID,
		event.ID,
	).Scan(&event.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.CalendarEvent{}, ErrNotFound
		}
		return types.CalendarEvent{}, err
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, userID string, id int64) error {
	const query = `DELETE FROM calendar_events WHERE user_id = $1 AND id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *EventRepository) query(ctx context.Context, query string, args ...any) ([]types.CalendarEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]types.CalendarEvent, 0)
	for rows.Next() {
		var event types.CalendarEvent
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Title,
			&event.Start,
			&event.End,
			&event.Location,
			&event.Description,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
