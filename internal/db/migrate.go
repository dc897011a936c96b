package db

import (
	"tokenpilot/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Token{},
		&models.Signal{},
		&models.Holding{},
		&models.Trade{},
		&models.PortfolioSnapshot{},
		&models.TrackedWallet{},
	)
}
