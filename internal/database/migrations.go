package database

import (
	"gorm.io/gorm"

	"github.com/harborcare/notify/internal/models"
)

func autoMigrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Notification{},
	)
}
