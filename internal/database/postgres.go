package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-readmission/internal/config"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// HealthTimeout bound on a single health ping
const HealthTimeout = time.Second

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

func configurePool(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}
}

// Open connects and bootstraps the readmission schema
// A schema failure closes the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("Database ready",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int("max_conns", cfg.MaxConns),
		zap.Duration("max_lifetime", cfg.MaxLifetime),
	)
	return db, nil
}

// HealthCheck pings db with HealthTimeout for GET /health
func HealthCheck(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// Close 关闭数据库连接
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
