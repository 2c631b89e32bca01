// Package gorm owns the durable schema: the SQLite connection, migrations,
// and the relational stores built on them.
package gorm

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // cgo driver; FTS5 available under -tags fts5
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the one SQLite database shared by the GORM models and the raw
// hot-path stores.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config controls how the database is opened.
type Config struct {
	Path     string
	MaxConns int             // open and idle connection cap, 4 when unset
	LogLevel logger.LogLevel // logger.Silent outside tests
}

// startupPragmas run once the schema is in place. WAL keeps readers live
// while the sentinels write; the busy timeout makes SQLite wait out short
// lock contention instead of returning SQLITE_BUSY.
var startupPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

// NewStore opens the database, runs migrations, and applies the runtime
// pragmas.
func NewStore(cfg Config) (*Store, error) {
	sqlDB, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("attach gorm to sqlite: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Migrations first: gormigrate wraps each step in a transaction, and
	// SQLite refuses journal-mode changes inside one.
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	for _, pragma := range startupPragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the connection is alive.
func (s *Store) Ping() error {
	return s.sqlDB.Ping()
}

// GetRawDB exposes the underlying *sql.DB for the prepared-statement stores
// and FTS5 MATCH queries GORM cannot express.
func (s *Store) GetRawDB() *sql.DB {
	return s.sqlDB
}

// GetDB returns the GORM handle.
func (s *Store) GetDB() *gorm.DB {
	return s.DB
}
