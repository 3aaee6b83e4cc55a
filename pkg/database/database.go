package database

import (
	"fmt"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB initializes the database connection and migrates the schema
func InitDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	var err error
	db, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.DB.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every model
func Migrate(db *gorm.DB, log *zap.Logger) error {
	start := time.Now()
	log.Info("Starting database migration...")

	if err := db.AutoMigrate(model.All()...); err != nil {
		log.Error("Database migration failed", zap.Error(err))
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	log.Info("Database migration completed successfully",
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Close releases the underlying connection pool
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
