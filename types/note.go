package types

import "time"

// Note is a user-owned note. Title is stored in plaintext and is the natural
// key per user; Body only ever reaches storage as ciphertext.
type Note struct {
	UserID string `json:"-" db:"user_id"`
	Title  string `json:"title" db:"title"`

	// Body holds the decrypted text on the way out of the service layer.
	Body string `json:"body" db:"-"`

	// EncryptedBody is the ciphertext as persisted.
	EncryptedBody string `json:"-" db:"body"`

	// Unreadable is set when EncryptedBody could not be decrypted and Body
	// carries a placeholder instead.
	Unreadable bool `json:"unreadable,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
