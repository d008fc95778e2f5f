package models

import (
	"time"

	"github.com/koas-web/koasbackend/auth"
)

// AdminUser is a panel operator account. exactly one row per username; rows
// are never deleted, only the password hash changes.
type AdminUser struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AdminUser) TableName() string { return "admin_users" }

// SetPassword hashes the given password and sets it on the user model.
func (u *AdminUser) SetPassword(password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword verifies if the given password matches the user's hashed password.
func (u *AdminUser) CheckPassword(password string) bool {
	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	return err == nil && ok
}
