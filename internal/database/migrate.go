package database

import (
	"fiduciaire/internal/models"
	"fiduciaire/pkg/logger"

	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Societe{},
		&models.SocieteUser{},
		&models.Associe{},
		&models.Gerant{},
		&models.TypePV{},
		&models.Document{},
		&models.Notification{},
	}
}

// Migrate runs auto-migration on the shared connection.
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB runs auto-migration on db.
func MigrateDB(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	if err := db.AutoMigrate(Models()...); err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
