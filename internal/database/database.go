package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

var DB *gorm.DB

// Initialize opens the configured database into DB and migrates the schema
func Initialize(cfg config.DatabaseConfig, log logrus.FieldLogger) error {
	db, err := Open(cfg, log)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// newGormLogger sends slow queries and errors to log. Merge lookups miss on purpose,
// so record-not-found is not reported.
func newGormLogger(log logrus.FieldLogger) logger.Interface {
	return logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Open connects with the dialector named by cfg.Driver and runs migrations
func Open(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for the mysql driver")
		}
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		// sqlite allows a single writer; background jobs share it
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.WithField("driver", dialector.Name()).Info("Database connected successfully")

	if err := cleanupDuplicateInventory(db, log); err != nil {
		return nil, fmt.Errorf("failed to clean up duplicate inventory: %w", err)
	}

	if err := db.AutoMigrate(
		&models.InventoryRecord{},
		&models.PriceAlert{},
		&models.CollectionTemplate{},
		&models.TemplateEntry{},
		&models.TemplateInstance{},
		&models.InventoryValueSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := RunMigrations(db, log); err != nil {
		return nil, err
	}

	log.Info("Database migration completed")
	return db, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}
