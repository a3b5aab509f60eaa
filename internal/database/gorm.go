// Package database opens the relational store behind the room event log and
// user directory, and the optional Redis client used for caching and token
// revocation.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tune how the connection is opened
type Options struct {
	// Tracing installs the otelgorm plugin so queries appear as spans
	Tracing bool
	// PingTimeout bounds the connectivity check after opening
	PingTimeout time.Duration
}

// DB wraps a GORM connection for any of the supported dialects
type DB struct {
	db     *gorm.DB
	dbType string
}

// dialectorFor builds the GORM dialector for the configured database type
func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Type {
	case config.DatabaseTypePostgres:
		p := cfg.Postgres
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
		return postgres.Open(dsn), fmt.Sprintf("%s:%s/%s", p.Host, p.Port, p.Database), nil

	case config.DatabaseTypeMySQL:
		m := cfg.MySQL
		// parseTime=true is required for time.Time scanning
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
			m.User, m.Password, m.Host, m.Port, m.Database)
		return mysql.Open(dsn), fmt.Sprintf("%s:%s/%s", m.Host, m.Port, m.Database), nil

	case config.DatabaseTypeSQLServer:
		s := cfg.SQLServer
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			s.User, s.Password, s.Host, s.Port, s.Database)
		return sqlserver.Open(dsn), fmt.Sprintf("%s:%s/%s", s.Host, s.Port, s.Database), nil

	case config.DatabaseTypeSQLite:
		// File path, or ":memory:"
		return sqlite.Open(cfg.SQLite.Path), cfg.SQLite.Path, nil

	default:
		return nil, "", fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Open connects to the configured database and verifies it answers a ping
func Open(cfg config.DatabaseConfig, opts Options) (*DB, error) {
	log := slogging.Get()
	log.Debug("Initializing GORM connection for database type: %s", cfg.Type)

	dialector, target, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("Using %s dialector for %s", cfg.Type, target)

	return openDialector(dialector, cfg.Type, opts)
}

// OpenDialector wraps an already-built dialector. Tests use it to run the
// stores against a sqlmock connection.
func OpenDialector(dialector gorm.Dialector, dbType string, opts Options) (*DB, error) {
	return openDialector(dialector, dbType, opts)
}

func openDialector(dialector gorm.Dialector, dbType string, opts Options) (*DB, error) {
	log := slogging.Get()

	gormConfig := &gorm.Config{
		Logger: newGormLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		log.Error("Failed to open GORM connection: %v", err)
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(dbType))); err != nil {
			return nil, fmt.Errorf("failed to install gorm tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Failed to get underlying sql.DB: %v", err)
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if dbType == config.DatabaseTypeSQLite {
		// A single writer avoids "database is locked" under concurrent appends
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(4 * time.Minute)
		sqlDB.SetConnMaxIdleTime(30 * time.Second)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Debug("GORM connection established successfully")

	return &DB{db: db, dbType: dbType}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		slogging.Get().Error("Error closing GORM connection: %v", err)
		return fmt.Errorf("error closing database connection: %w", err)
	}
	return nil
}

// Gorm returns the GORM handle
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Type returns the configured database type
func (d *DB) Type() string {
	return d.dbType
}

// Ping checks if the database connection is alive
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// LogStats logs statistics about the connection pool
func (d *DB) LogStats() {
	sqlDB, err := d.db.DB()
	if err != nil {
		slogging.Get().Error("Failed to get underlying sql.DB for stats: %v", err)
		return
	}

	stats := sqlDB.Stats()
	slogging.Get().Debug("GORM connection pool stats: open=%d, inUse=%d, idle=%d, waitCount=%d, waitDuration=%s",
		stats.OpenConnections, stats.InUse, stats.Idle, stats.WaitCount, stats.WaitDuration)
}

// AutoMigrate creates or updates the tables for every model this service owns
func (d *DB) AutoMigrate() error {
	log := slogging.Get()
	models := AllModels()
	log.Debug("Running GORM auto-migration for %d models", len(models))

	if err := d.db.AutoMigrate(models...); err != nil {
		log.Error("GORM auto-migration failed: %v", err)
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// gormLogger adapts slogging to GORM's logger interface
type gormLogger struct {
	log *slogging.Logger
}

func newGormLogger(log *slogging.Logger) logger.Interface {
	return &gormLogger{log: log}
}

func (l *gormLogger) LogMode(logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	l.log.Info(msg, data...)
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.log.Warn(msg, data...)
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.log.Error(msg, data...)
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err == nil:
		l.log.Debug("GORM query: %s (%d rows, %s)", sql, rows, elapsed)
	case err == gorm.ErrRecordNotFound:
		l.log.Debug("GORM query found no rows: %s (%s)", sql, elapsed)
	default:
		l.log.Error("GORM query error: %v [%s] (%d rows, %s)", err, sql, rows, elapsed)
	}
}
