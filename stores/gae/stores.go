package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	sw "github.com/telaga/secretwall"
)

// Kind constants for Datastore entities
const (
	KindUser     = "User"
	KindUsername = "Username"
	KindGoogleID = "GoogleID"
)

// UserEntity is the Datastore representation of a user record.
type UserEntity struct {
	Username     string    `datastore:"username"`
	PasswordHash string    `datastore:"password_hash,noindex"`
	GoogleID     string    `datastore:"google_id"`
	Secret       string    `datastore:"secret,noindex"`
	HasSecret    bool      `datastore:"has_secret"`
	CreatedAt    time.Time `datastore:"created_at"`
	UpdatedAt    time.Time `datastore:"updated_at"`
}

// mappingEntity reserves a unique natural key (username or provider id)
// and points at the owning user.
type mappingEntity struct {
	UserID    string    `datastore:"user_id"`
	CreatedAt time.Time `datastore:"created_at"`
}

// UserStore implements sw.UserStore on Cloud Datastore. Uniqueness is
// enforced with keyed mapping entities created inside transactions.
type UserStore struct {
	client    *datastore.Client
	namespace string
}

func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*sw.User, error) {
	userId := uuid.NewString()
	now := time.Now()

	nameKey := s.namespacedKey(KindUsername, username)
	userKey := s.namespacedKey(KindUser, userId)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing mappingEntity
		err := tx.Get(nameKey, &existing)
		if err == nil {
			return sw.ErrDuplicateUsername
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		if _, err := tx.Put(nameKey, &mappingEntity{UserID: userId, CreatedAt: now}); err != nil {
			return err
		}
		entity := &UserEntity{
			Username:     username,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, err = tx.Put(userKey, entity)
		return err
	})
	if err != nil {
		if errors.Is(err, sw.ErrDuplicateUsername) {
			return nil, err
		}
		return nil, storeErr(err)
	}

	return &sw.User{
		ID:           userId,
		Username:     &username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*sw.User, error) {
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, userId), &entity); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sw.ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return entityToUser(userId, &entity), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*sw.User, error) {
	var mapping mappingEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUsername, username), &mapping); err != nil {
		if err == datastore.ErrNoSuchEntity {
			return nil, sw.ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return s.GetUserById(ctx, mapping.UserID)
}

// EnsureGoogleUser runs the find-or-create inside a single transaction
// keyed on the provider id, so concurrent callbacks cannot race.
func (s *UserStore) EnsureGoogleUser(ctx context.Context, googleId string) (*sw.User, error) {
	gidKey := s.namespacedKey(KindGoogleID, googleId)

	var out *sw.User
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var mapping mappingEntity
		err := tx.Get(gidKey, &mapping)
		if err == nil {
			var entity UserEntity
			if err := tx.Get(s.namespacedKey(KindUser, mapping.UserID), &entity); err != nil {
				return err
			}
			out = entityToUser(mapping.UserID, &entity)
			return nil
		}
		if err != datastore.ErrNoSuchEntity {
			return err
		}

		userId := uuid.NewString()
		now := time.Now()
		if _, err := tx.Put(gidKey, &mappingEntity{UserID: userId, CreatedAt: now}); err != nil {
			return err
		}
		entity := &UserEntity{
			GoogleID:  googleId,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.Put(s.namespacedKey(KindUser, userId), entity); err != nil {
			return err
		}
		out = entityToUser(userId, entity)
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId string, secret string) error {
	userKey := s.namespacedKey(KindUser, userId)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(userKey, &entity); err != nil {
			if err == datastore.ErrNoSuchEntity {
				return sw.ErrUserNotFound
			}
			return err
		}
		entity.Secret = secret
		entity.HasSecret = secret != ""
		entity.UpdatedAt = time.Now()
		_, err := tx.Put(userKey, &entity)
		return err
	})
	if err != nil {
		if errors.Is(err, sw.ErrUserNotFound) {
			return err
		}
		return storeErr(err)
	}
	return nil
}

func (s *UserStore) UsersWithSecrets(ctx context.Context) ([]*sw.User, error) {
	query := datastore.NewQuery(KindUser).FilterField("has_secret", "=", true)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	var users []*sw.User
	it := s.client.Run(ctx, query)
	for {
		var entity UserEntity
		key, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeErr(err)
		}
		users = append(users, entityToUser(key.Name, &entity))
	}
	return users, nil
}

func entityToUser(userId string, e *UserEntity) *sw.User {
	user := &sw.User{
		ID:           userId,
		PasswordHash: e.PasswordHash,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if e.Username != "" {
		v := e.Username
		user.Username = &v
	}
	if e.GoogleID != "" {
		v := e.GoogleID
		user.GoogleID = &v
	}
	if e.Secret != "" {
		v := e.Secret
		user.Secret = &v
	}
	return user
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", sw.ErrStoreUnavailable, err)
}
