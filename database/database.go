package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/koas-web/koasbackend/config"
	"github.com/koas-web/koasbackend/models"
)

// InitDB initializes and returns a GORM database instance backed by sqlite
func InitDB(dataSourceName string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// enable write-ahead logging for better concurrency
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		log.Printf("warning: failed to set WAL mode: %v", err)
	}

	log.Println("database initialized successfully at", dataSourceName)
	return db, nil
}

// AutoMigrate creates or updates the schema for all models
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.AdminUser{},
		&models.TeamMember{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	return nil
}

// SeedAdmin creates the initial admin account if no admin exists yet. it
// warns when a production deployment still carries the default password.
func SeedAdmin(db *gorm.DB, cfg config.Config) error {
	var count int64
	if err := db.Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count admin users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if cfg.Environment == "production" && cfg.AdminPassword == config.DefaultAdminPassword {
		log.Println("Warning: Using default ADMIN_PASSWORD in production. Set a strong ADMIN_PASSWORD in environment variables.")
	}

	admin := &models.AdminUser{Username: cfg.AdminUsername}
	if err := admin.SetPassword(cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to hash seed admin password: %w", err)
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create seed admin: %w", err)
	}

	log.Printf("default admin user created: username=%s", cfg.AdminUsername)
	return nil
}
