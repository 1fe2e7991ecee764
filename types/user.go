package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the opaque identifier assigned once at registration. It never
	// changes and is also the passphrase for every encrypted record the
	// user owns.
	ID string `json:"id" db:"id"`

	// Email is the unique login address.
	Email string `json:"email" db:"email"`

	// PasswordVerifier is the bcrypt hash of the password, encrypted under ID.
	// This field is never exposed in API responses.
	PasswordVerifier string `json:"-" db:"password_verifier"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
