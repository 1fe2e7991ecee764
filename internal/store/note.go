package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/studyplanner/planner/types"
)

// NoteRepository persists notes keyed by (user_id, title). Bodies arrive
// already encrypted.
type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// List returns the user's notes, most recently updated first. A limit below 1
// returns every note.
func (r *NoteRepository) List(ctx context.Context, userID string, limit int) ([]types.Note, error) {
	query := `
		SELECT user_id, title, body, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY updated_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += `
		LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]types.Note, 0)
	for rows.Next() {
		var note types.Note
		if err := rows.Scan(
			&note.UserID,
			&note.Title,
			&note.EncryptedBody,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *NoteRepository) Get(ctx context.Context, userID, title string) (types.Note, error) {
	const query = `
		SELECT user_id, title, body, created_at, updated_at
		FROM notes
		WHERE user_id = $1 AND title = $2`
	var note types.Note
	err := r.db.QueryRowContext(ctx, query, userID, title).Scan(
		&note.UserID,
		&note.Title,
		&note.EncryptedBody,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, err
	}
	return note, nil
}

func (r *NoteRepository) Create(ctx context.Context, note types.Note) (types.Note, error) {
	now := time.Now()
	note.CreatedAt = now
	note.UpdatedAt = now

	const query = `
		INSERT INTO notes (user_id, title, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		note.UserID,
		note.Title,
		note.EncryptedBody,
		note.CreatedAt,
		note.UpdatedAt,
	); err != nil {
		return types.Note{}, translateError(err)
	}
	return note, nil
}

// Update replaces the title and body of the note currently named oldTitle.
func (r *NoteRepository) Update(ctx context.Context, oldTitle string, note types.Note) (types.Note, error) {
	note.UpdatedAt = time.Now()

	const query = `
		UPDATE notes
		SET title = $1,
			body = $2,
			updated_at = $3
		WHERE user_id = $4 AND title = $5
		RETURNING created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		note.Title,
		note.EncryptedBody,
		note.UpdatedAt,
		note.UserID,
		oldTitle,
	).Scan(&note.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Note{}, ErrNotFound
		}
		return types.Note{}, translateError(err)
	}
	return note, nil
}

func (r *NoteRepository) Delete(ctx context.Context, userID, title string) error {
	const query = `DELETE FROM notes WHERE user_id = $1 AND title = $2`
	result, err := r.db.ExecContext(ctx, query, userID, title)
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
