package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTxTimeout = 5 * time.Second
	busyTimeoutMS    = 5000
)

// DB is the SQLite booking store.
type DB struct {
	*sql.DB
	path      string
	keeper    *sql.Conn
	txTimeout time.Duration
	logger    *zerolog.Logger
}

// NewDB opens (or creates) the SQLite file at path and applies the schema.
// Write transactions start with BEGIN IMMEDIATE, so the conflict check and the
// insert that follows it hold the database write lock together.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	if inMemory {
		// Именованная shared-cache база живёт, пока открыто хотя бы одно соединение.
		dsn = fmt.Sprintf("file:fbs-%s?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=%d&_foreign_keys=on",
			uuid.NewString(), busyTimeoutMS)
	} else {
		dsn = fmt.Sprintf("%s?_txlock=immediate&_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL", path, busyTimeoutMS)
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, txTimeout: DefaultTxTimeout, logger: logger}
	if inMemory {
		// One pinned idle connection keeps the data alive when database/sql
		// discards the working connection (e.g. after a tx timeout). All
		// statements share the single remaining slot.
		sqlDB.SetMaxOpenConns(2)
		keeper, err := sqlDB.Conn(context.Background())
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.keeper = keeper
	}

	if err := sqlDB.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            building TEXT NOT NULL DEFAULT '',
            capacity INTEGER NOT NULL CHECK (capacity >= 1),
            active BOOLEAN NOT NULL DEFAULT 1,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Времена хранятся как HH:MM, поэтому сравниваются лексикографически
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            facility_id TEXT NOT NULL REFERENCES facilities(id),
            date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            user_email TEXT NOT NULL,
            reason TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            CHECK (start_time < end_time)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_facility_date ON bookings(facility_id, date, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_email ON bookings(user_email)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetTxTimeout bounds every transaction opened through WithTx.
func (db *DB) SetTxTimeout(d time.Duration) {
	if d > 0 {
		db.txTimeout = d
	}
}

func (db *DB) Path() string {
	return db.path
}

// WithTx runs fn inside one transaction: commit when fn returns nil, roll back otherwise.
// fn must only use tx; touching db from inside deadlocks an in-memory database.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.keeper != nil {
		_ = db.keeper.Close()
		db.keeper = nil
	}
	return db.DB.Close()
}
