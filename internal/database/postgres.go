package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresStore is the booking store for deployments running several service instances.
// CreateBooking serializes writers per (facility, date) with a transaction-scoped advisory lock.
type PostgresStore struct {
	pool      *pgxpool.Pool
	txTimeout time.Duration
	logger    *zerolog.Logger
}

type PostgresOptions struct {
	MaxConns  int32
	TxTimeout time.Duration
}

func NewPostgresStore(ctx context.Context, databaseURL string, opts PostgresOptions, logger *zerolog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	cfg.MaxConns = 10
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, txTimeout: DefaultTxTimeout, logger: logger}
	if opts.TxTimeout > 0 {
		s.txTimeout = opts.TxTimeout
	}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Int32("max_conns", cfg.MaxConns).Msg("Postgres booking store initialized")
	return s, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facilities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			building TEXT NOT NULL DEFAULT '',
			capacity INTEGER NOT NULL CHECK (capacity >= 1),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			facility_id TEXT NOT NULL REFERENCES facilities(id),
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			user_email TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			seq BIGSERIAL,
			CHECK (start_time < end_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_facility_date ON bookings(facility_id, date, start_time)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("error executing query %s: %w", q, err)
		}
	}
	return nil
}

// WithTx runs fn in one transaction bounded by the store's tx timeout.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanReservations(rows pgx.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	out := make([]models.Reservation, 0)
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return out, nil
}

const listReservationsSQL = `
	SELECT id, start_time, end_time FROM bookings
	WHERE facility_id = $1 AND date = $2
	ORDER BY start_time ASC, seq ASC`

func (s *PostgresStore) ListBookingsFor(ctx context.Context, facilityID, date string) ([]models.Reservation, error) {
	rows, err := s.pool.Query(ctx, listReservationsSQL, facilityID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return scanReservations(rows)
}

func (s *PostgresStore) ListBookingsForMany(ctx context.Context, facilityIDs []string, date string) (map[string][]models.Reservation, error) {
	result := make(map[string][]models.Reservation, len(facilityIDs))
	if len(facilityIDs) == 0 {
		return result, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT facility_id, id, start_time, end_time FROM bookings
		WHERE date = $1 AND facility_id = ANY($2)
		ORDER BY facility_id, start_time ASC, seq ASC`, date, facilityIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var facilityID string
		var r models.Reservation
		if err := rows.Scan(&facilityID, &r.ID, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		result[facilityID] = append(result[facilityID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return s.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// держим блокировку на (помещение, дата) до конца транзакции
		lockKey := booking.FacilityID + "|" + booking.Date
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("failed to acquire booking lock: %w", err)
		}

		rows, err := tx.Query(ctx, listReservationsSQL, booking.FacilityID, booking.Date)
		if err != nil {
			return fmt.Errorf("failed to check conflicts in tx: %w", err)
		}
		existing, err := scanReservations(rows)
		if err != nil {
			return err
		}
		if conflict, ok := domain.FindConflict(existing, booking.Start, booking.End); ok {
			return &domain.ConflictError{Conflict: conflict}
		}

		id := booking.ID
		if id == "" {
			id = uuid.NewString()
		}
		var createdAt time.Time
		err = tx.QueryRow(ctx, `
			INSERT INTO bookings (id, facility_id, date, start_time, end_time, user_email, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`,
			id, booking.FacilityID, booking.Date, booking.Start, booking.End, booking.UserEmail, booking.Reason,
		).Scan(&createdAt)
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		booking.ID = id
		booking.CreatedAt = createdAt
		return nil
	})
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := s.pool.QueryRow(ctx, `
		SELECT id, facility_id, date, start_time, end_time, user_email, reason, created_at
		FROM bookings WHERE id = $1`, id).Scan(
		&b.ID, &b.FacilityID, &b.Date, &b.Start, &b.End, &b.UserEmail, &b.Reason, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) SyncFacilities(ctx context.Context, facilities []models.Facility) error {
	return s.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range facilities {
			batch.Queue(`
				INSERT INTO facilities (id, name, building, capacity, active, updated_at)
				VALUES ($1, $2, $3, $4, $5, now())
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					building = EXCLUDED.building,
					capacity = EXCLUDED.capacity,
					active = EXCLUDED.active,
					updated_at = now()`,
				f.ID, f.Name, f.Building, f.Capacity, f.Active)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert facilities: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
