package gorm

import (
	"time"

	sw "github.com/telaga/secretwall"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     *string   `gorm:"uniqueIndex;size:255"`
	PasswordHash string    `gorm:"size:255"`
	GoogleID     *string   `gorm:"uniqueIndex;size:255"`
	Secret       *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *sw.User {
	return &sw.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		GoogleID:     m.GoogleID,
		Secret:       m.Secret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
