package stores

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	sw "github.com/telaga/secretwall"
)

// MemUserStore keeps user records in memory. Suitable for development and
// tests; a lock makes every operation, including find-or-create, atomic.
type MemUserStore struct {
	mu         sync.RWMutex
	byId       map[string]*sw.User
	byUsername map[string]string
	byGoogleId map[string]string
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		byId:       make(map[string]*sw.User),
		byUsername: make(map[string]string),
		byGoogleId: make(map[string]string),
	}
}

func (s *MemUserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*sw.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[username]; taken {
		return nil, sw.ErrDuplicateUsername
	}

	now := time.Now()
	name := username
	user := &sw.User{
		ID:           uuid.NewString(),
		Username:     &name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byId[user.ID] = user
	s.byUsername[username] = user.ID
	return copyUser(user), nil
}

func (s *MemUserStore) GetUserById(ctx context.Context, userId string) (*sw.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byId[userId]
	if !ok {
		return nil, sw.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (s *MemUserStore) GetUserByUsername(ctx context.Context, username string) (*sw.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userId, ok := s.byUsername[username]
	if !ok {
		return nil, sw.ErrUserNotFound
	}
	return copyUser(s.byId[userId]), nil
}

func (s *MemUserStore) EnsureGoogleUser(ctx context.Context, googleId string) (*sw.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userId, ok := s.byGoogleId[googleId]; ok {
		return copyUser(s.byId[userId]), nil
	}

	now := time.Now()
	gid := googleId
	user := &sw.User{
		ID:        uuid.NewString(),
		GoogleID:  &gid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byId[user.ID] = user
	s.byGoogleId[googleId] = user.ID
	return copyUser(user), nil
}

func (s *MemUserStore) SetSecret(ctx context.Context, userId string, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byId[userId]
	if !ok {
		return sw.ErrUserNotFound
	}
	value := secret
	user.Secret = &value
	user.UpdatedAt = time.Now()
	return nil
}

// DeleteUser removes a record and its lookup entries. Not part of the
// UserStore interface; tests use it to simulate a vanished principal.
func (s *MemUserStore) DeleteUser(ctx context.Context, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byId[userId]
	if !ok {
		return sw.ErrUserNotFound
	}
	if user.Username != nil {
		delete(s.byUsername, *user.Username)
	}
	if user.GoogleID != nil {
		delete(s.byGoogleId, *user.GoogleID)
	}
	delete(s.byId, userId)
	return nil
}

func (s *MemUserStore) UsersWithSecrets(ctx context.Context) ([]*sw.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*sw.User
	for _, user := range s.byId {
		if user.HasSecret() {
			out = append(out, copyUser(user))
		}
	}
	return out, nil
}

// copyUser returns a deep enough copy that callers cannot mutate the
// store's records through the pointer fields.
func copyUser(u *sw.User) *sw.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Username != nil {
		v := *u.Username
		out.Username = &v
	}
	if u.GoogleID != nil {
		v := *u.GoogleID
		out.GoogleID = &v
	}
	if u.Secret != nil {
		v := *u.Secret
		out.Secret = &v
	}
	return &out
}
