package database

import (
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Order matters for drivers that create foreign keys eagerly.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Contract{},
		&models.Obligation{},
		&models.ContractMembership{},
		&models.ObligationInstance{},
		&models.Notification{},
		&models.CacheEntry{},
	)
}
