package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sw "github.com/telaga/secretwall"
)

// AutoMigrate runs database migrations for the secretwall tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements sw.UserStore using GORM. Open the DB with
// gorm.Config{TranslateError: true} so unique violations surface as
// gorm.ErrDuplicatedKey.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, passwordHash string) (*sw.User, error) {
	model := &UserModel{
		ID:           uuid.NewString(),
		Username:     &username,
		PasswordHash: passwordHash,
	}
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, sw.ErrDuplicateUsername
		}
		return nil, storeErr(err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*sw.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sw.ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*sw.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sw.ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return model.ToUser(), nil
}

// EnsureGoogleUser inserts with ON CONFLICT DO NOTHING and reads back, so
// two concurrent callbacks for the same new id still end with one row.
func (s *UserStore) EnsureGoogleUser(ctx context.Context, googleId string) (*sw.User, error) {
	model := &UserModel{
		ID:       uuid.NewString(),
		GoogleID: &googleId,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "google_id"}},
			DoNothing: true,
		}).
		Create(model).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, storeErr(err)
	}

	var out UserModel
	if err := s.db.WithContext(ctx).First(&out, "google_id = ?", googleId).Error; err != nil {
		return nil, storeErr(err)
	}
	return out.ToUser(), nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId string, secret string) error {
	res := s.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", userId).
		Update("secret", secret)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return sw.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) UsersWithSecrets(ctx context.Context) ([]*sw.User, error) {
	var models []UserModel
	if err := s.db.WithContext(ctx).
		Where("secret IS NOT NULL AND secret <> ''").
		Find(&models).Error; err != nil {
		return nil, storeErr(err)
	}

	users := make([]*sw.User, len(models))
	for i := range models {
		users[i] = models[i].ToUser()
	}
	return users, nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", sw.ErrStoreUnavailable, err)
}
