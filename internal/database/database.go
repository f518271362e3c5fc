package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the SQLite store for operating hours, slots and reservations.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrNotFound               = errors.New("not found")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicate              = errors.New("duplicate record")
	ErrSlotOverlap            = errors.New("slot overlaps an existing slot")
	ErrSlotInUse              = errors.New("slot has bookings")
)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode, busy timeout; _txlock=immediate takes the write lock at BEGIN.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{
		DB:     db,
		path:   path,
		logger: logger,
	}

	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS operating_hours (
			business_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			breaks TEXT NOT NULL DEFAULT '[]',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (business_id, day_of_week)
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			business_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			windows TEXT NOT NULL DEFAULT '[]',
			reason TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (business_id, date)
		)`,
		`CREATE TABLE IF NOT EXISTS booking_slots (
			id TEXT PRIMARY KEY,
			business_id INTEGER NOT NULL,
			menu_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity >= 1),
			booked_count INTEGER NOT NULL DEFAULT 0 CHECK (booked_count >= 0 AND booked_count <= capacity),
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK (start_time < end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_slots_menu_date ON booking_slots(menu_id, date, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_slots_business_date ON booking_slots(business_id, date)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			slot_id TEXT NOT NULL,
			business_id INTEGER NOT NULL,
			menu_id INTEGER NOT NULL,
			customer_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price_cents INTEGER NOT NULL DEFAULT 0,
			order_type TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			cancelled_at DATETIME,
			cancelled_by INTEGER,
			completed_at DATETIME
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_reservations_active_customer_slot
			ON reservations(customer_id, slot_id) WHERE status IN ('pending', 'confirmed')`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(slot_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_business_date ON reservations(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_customer ON reservations(customer_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	db.ensureColumns()
	return nil
}

// ensureColumns adds columns introduced after the first schema; duplicates are ignored.
func (db *DB) ensureColumns() {
	migrations := []string{
		`ALTER TABLE reservations ADD COLUMN order_type TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE operating_hours ADD COLUMN is_default BOOLEAN NOT NULL DEFAULT 0`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			db.logger.Debug().Err(err).Str("migration", m).Msg("Migration skipped")
		}
	}
}

// InTx runs fn inside one transaction; any error rolls everything back.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// HealthCheck verifies the connection for readiness probes.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type scanner interface {
	Scan(dest ...any) error
}
