package database

import (
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/logger"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the configured database and keeps it as the shared
// connection. Postgres in production; sqlite for local runs.
func Initialize(cfg *config.Config) error {
	logLevel := gormlogger.Warn
	if cfg.Server.Mode == "debug" {
		logLevel = gormlogger.Info
	}
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		db, err = OpenSQLite(cfg.Database.Path, gormCfg)
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=Africa/Casablanca",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password,
			cfg.Database.DBName, cfg.Database.SSLMode)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if cfg.Database.Driver != "sqlite" {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	DB = db
	logger.GetLogger().Infof("Database connection established (%s)", cfg.Database.Driver)
	return nil
}

// OpenSQLite opens a sqlite database; dsn may be a file path or a
// "file:name?mode=memory&cache=shared" URI. Foreign keys are enabled.
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}
	return db, nil
}

// GetDB returns the shared connection
func GetDB() *gorm.DB {
	return DB
}

// SetDB replaces the shared connection (tests, tools).
func SetDB(db *gorm.DB) {
	DB = db
}

// Close closes the pool
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
