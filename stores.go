package secretwall

import (
	"context"
	"time"
)

// User is the sole persisted entity. A record is reachable by at least one
// of Username (local credentials) or GoogleID (federated login); every other
// field is optional.
type User struct {
	ID           string
	Username     *string // set only for accounts registered with local credentials
	PasswordHash string  // bcrypt hash; empty for OAuth-only accounts
	GoogleID     *string // set only for accounts provisioned via Google login
	Secret       *string // at most one secret per account; overwritten, never appended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecret reports whether the user has submitted a secret.
func (u *User) HasSecret() bool {
	return u.Secret != nil && *u.Secret != ""
}

// UserStore persists user records. Implementations must be safe for
// concurrent use; EnsureGoogleUser and SetSecret must be atomic
// single-record operations, not read-then-write sequences.
type UserStore interface {
	// CreateLocalUser creates a user with local credentials. Returns
	// ErrDuplicateUsername if the username is already taken.
	CreateLocalUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserById retrieves a user by their ID. Returns ErrUserNotFound
	// if no such record exists.
	GetUserById(ctx context.Context, userId string) (*User, error)

	// GetUserByUsername retrieves a user by their local username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// EnsureGoogleUser is an atomic find-or-create keyed by the external
	// provider identifier. Concurrent calls with the same new id must
	// yield exactly one record.
	EnsureGoogleUser(ctx context.Context, googleId string) (*User, error)

	// SetSecret overwrites the user's secret in a single operation.
	// Returns ErrUserNotFound if the record no longer exists.
	SetSecret(ctx context.Context, userId string, secret string) error

	// UsersWithSecrets returns every user holding a non-empty secret.
	UsersWithSecrets(ctx context.Context) ([]*User, error)
}
