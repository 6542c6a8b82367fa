package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/matchd/internal/config"
)

// NewDB initializes the database connection using DSN from config.
// TranslateError is on so the swipe resolver can detect composite-key
// races via gorm.ErrDuplicatedKey instead of driver-specific codes.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	database, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// Migrate ensures the schema is in sync with the models.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&User{},
		&Profile{},
		&Match{},
		&ChatMessage{},
		&Report{},
		&DeletedUser{},
		&ClientLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
