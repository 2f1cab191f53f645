package secretwall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credentials represents a username/password pair for signup or login
type Credentials struct {
	Username string
	Password string
}

// CredentialsValidator validates credentials during login and returns the user
type CredentialsValidator func(ctx context.Context, username, password string) (*User, error)

// CreateUserFunc creates a new user with the given credentials
type CreateUserFunc func(ctx context.Context, creds *Credentials) (*User, error)

// MinPasswordLength is the minimum accepted password length for signup.
const MinPasswordLength = 8

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._@+-]{3,64}$`)

// dummyHash is compared against when the username is unknown so that a
// failed login costs the same whether or not the account exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword hashes a plaintext password with bcrypt. The plaintext is
// never persisted anywhere.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ValidateSignup checks a credentials pair before account creation.
func ValidateSignup(creds *Credentials) *AuthError {
	if creds.Username == "" {
		return NewAuthError(ErrCodeMissingField, "Username is required", "username")
	}
	if creds.Password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if !usernameRegex.MatchString(creds.Username) {
		return NewAuthError(ErrCodeMissingField, "Username must be 3-64 characters", "username")
	}
	if len(creds.Password) < MinPasswordLength {
		return NewAuthError(ErrCodeWeakPassword, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength), "password")
	}
	return nil
}

// NewCreateUserFunc creates a CreateUserFunc backed by the given store
func NewCreateUserFunc(store UserStore) CreateUserFunc {
	return func(ctx context.Context, creds *Credentials) (*User, error) {
		username := strings.TrimSpace(creds.Username)
		hash, err := HashPassword(creds.Password)
		if err != nil {
			return nil, err
		}
		user, err := store.CreateLocalUser(ctx, username, hash)
		if err != nil {
			return nil, err
		}
		slog.Info("created local user", "userId", user.ID)
		return user, nil
	}
}

// NewCredentialsValidator creates a CredentialsValidator backed by the given
// store. An unknown username and a wrong password both come back as
// ErrInvalidCredentials; nothing in the result distinguishes the two.
func NewCredentialsValidator(store UserStore) CredentialsValidator {
	return func(ctx context.Context, username, password string) (*User, error) {
		user, err := store.GetUserByUsername(ctx, strings.TrimSpace(username))
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// burn a compare at the same cost as a real check
				bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
				return nil, ErrInvalidCredentials
			}
			return nil, err
		}
		if user.PasswordHash == "" {
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
		return user, nil
	}
}
