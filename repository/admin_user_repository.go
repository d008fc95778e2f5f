package repository

import (
	"gorm.io/gorm"

	"github.com/koas-web/koasbackend/models"
)

type GormAdminUserRepository struct {
	db *gorm.DB
}

func NewGormAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &GormAdminUserRepository{db: db}
}

func (r *GormAdminUserRepository) Create(user *models.AdminUser) error {
	return r.db.Create(user).Error
}

func (r *GormAdminUserRepository) GetByUsername(username string) (*models.AdminUser, error) {
	var user models.AdminUser
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormAdminUserRepository) UpdatePassword(username, newHash string) error {
	return r.db.Model(&models.AdminUser{}).
		Where("username = ?", username).
		Update("password_hash", newHash).Error
}
