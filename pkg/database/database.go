package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the process-wide database handle, initialized once at startup
// and drained on shutdown.
var DB *gorm.DB

// QueryTimeout bounds every storage call issued through WithContext.
var QueryTimeout = 5 * time.Second

// Initialize opens the connection pool and migrates the schema.
func Initialize(cfg *config.DBConfig) error {
	var err error

	// PreferSimpleProtocol prevents "prepared statement already exists"
	// errors behind connection poolers.
	pgConfig := postgres.Config{
		DSN:                  cfg.GetDSN(),
		PreferSimpleProtocol: true,
	}

	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger:         logger.Default.LogMode(cfg.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.QueryTimeout > 0 {
		QueryTimeout = cfg.QueryTimeout
	}

	return Migrate(DB)
}

// Migrate creates or updates the table structure for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Project{},
		&model.Task{},
		&model.AuditLog{},
	)
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// WithContext returns a session tied to the request context. The
// deadline middleware bounds that context with QueryTimeout, so no
// storage call can block indefinitely; deadline hits surface as context
// errors and are mapped to a retryable failure at the handler boundary.
func WithContext(ctx context.Context) *gorm.DB {
	return DB.WithContext(ctx)
}

// Close drains the connection pool.
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
