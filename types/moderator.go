package types

import "time"

// Moderator is an account allowed to review testimonies.
type Moderator struct {
	// ID is the unique identifier of the moderator (UUID).
	ID string `json:"id" db:"id"`

	// Email is the unique, lower-cased login address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the moderator's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AccessToken is the bearer credential generated when the account
	// is created. It is only returned by register and login.
	AccessToken string `json:"-" db:"access_token"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Credentials is what register and login hand back to the client.
type Credentials struct {
	ID          string `json:"id"`
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
}

// SignupKey is a pre-provisioned (email, key) pair that allows one
// moderator registration when signup gating is enabled.
type SignupKey struct {
	Email      string     `json:"email" db:"email"`
	Key        string     `json:"-" db:"key"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" db:"consumed_at"`
}
