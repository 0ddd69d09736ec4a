// Package postgres provides the SQL database connection and the SQL-backed revocation store.
// PostgreSQL is the production driver; SQLite serves single-node and test deployments.
package postgres

import (
	"context"
	"fmt"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/ssoguard/internal/config"
	"github.com/turtacn/ssoguard/pkg/errors"
	"github.com/turtacn/ssoguard/pkg/logger"
)

// DBConnection manages the gorm handle and its connection pool.
type DBConnection struct {
	db     *gorm.DB
	config config.DatabaseConfig
	logger logger.Logger
}

// NewDBConnection opens the configured database, applies pool settings and pings it.
func NewDBConnection(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.WithComponent("database")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres", "":
		dialector = gormpostgres.Open(cfg.GetDSN())
	default:
		return nil, errors.ErrInvalidConfig(fmt.Sprintf("unsupported database driver %q", cfg.Driver))
	}

	log.Info(ctx, "Initializing database connection pool",
		logger.String("driver", cfg.Driver),
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
		logger.Int("max_open_conns", cfg.MaxOpenConns),
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		log.Error(ctx, "Failed to open database", err)
		return nil, errors.ErrStoreUnavailable("database", err)
	}

	conn := &DBConnection{db: db, config: cfg, logger: log}
	if err := conn.applyPool(); err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// NewDBConnectionFromGorm wraps an already opened handle.
func NewDBConnectionFromGorm(db *gorm.DB, log logger.Logger) *DBConnection {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &DBConnection{db: db, logger: log.WithComponent("database")}
}

func (c *DBConnection) applyPool() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.ErrStoreUnavailable("database", err)
	}
	if c.config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.config.MaxOpenConns)
	}
	if c.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.config.MaxIdleConns)
	}
	if c.config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.config.ConnMaxLifetime)
	}
	return nil
}

// DB returns the gorm handle for repositories.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// Ping verifies database connectivity.
func (c *DBConnection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return errors.ErrStoreUnavailable("database", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		c.logger.Error(ctx, "Database ping failed", err)
		return errors.ErrStoreUnavailable("database", err)
	}
	if latency := time.Since(start); latency > 100*time.Millisecond {
		c.logger.Warn(ctx, "High database latency detected", logger.Int64("latency_ms", latency.Milliseconds()))
	}
	return nil
}

// HealthCheck reports pool statistics.
func (c *DBConnection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, err
	}
	sqlDB, _ := c.db.DB()
	stats := sqlDB.Stats()
	return map[string]interface{}{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
	}, nil
}

// Close releases the pool.
func (c *DBConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.logger.Info(context.Background(), "Closing database connection pool")
	return sqlDB.Close()
}
