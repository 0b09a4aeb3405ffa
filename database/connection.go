package database

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/estoque-backend/internal/config"
	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

// For Cloud Run with Cloud SQL
const socketDir = "/cloudsql"

// Connect opens the configured database and migrates the engine's tables
func Connect(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	logger = logging.Component(logger, "database")

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if cfg.IsDevelopment() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		logger.Info("Connecting to SQLite", zap.String("path", cfg.SQLitePath))
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dsn := PostgresDSN(cfg)
		if cfg.InstanceConnectionName != "" {
			logger.Info("Connecting to Cloud SQL via socket", zap.String("instance", cfg.InstanceConnectionName))
		} else {
			logger.Info("Connecting to PostgreSQL", zap.String("host", cfg.DBHost), zap.String("port", cfg.DBPort))
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite allows one writer at a time
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := storage.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("✅ Database connected successfully!")
	return db, nil
}

// PostgresDSN builds the connection string: a Unix socket on Cloud Run,
// plain TCP everywhere else
func PostgresDSN(cfg *config.Config) string {
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, cfg.DBUser, cfg.DBPass, cfg.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPass, cfg.DBName, cfg.DBPort)
}
