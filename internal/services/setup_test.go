package services

import (
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/TeaToe17/jalev1/internal/models"
)

// SetupTestDB initializes an in-memory SQLite DB for testing
func SetupTestDB() *gorm.DB {
	db, _ := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	db.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.ChatPreview{},
		&models.PushTarget{},
	)
	return db
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
