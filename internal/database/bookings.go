package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/google/uuid"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func listReservations(ctx context.Context, q queryer, facilityID, date string) ([]models.Reservation, error) {
	query := `SELECT id, start_time, end_time FROM bookings
              WHERE facility_id = ? AND date = ?
              ORDER BY start_time, rowid`

	rows, err := q.QueryContext(ctx, query, facilityID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	reservations := make([]models.Reservation, 0)
	for rows.Next() {
		var r models.Reservation
		if err := rows.Scan(&r.ID, &r.Start, &r.End); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return reservations, nil
}

// ListBookingsFor returns the reservations of one facility on date, sorted by start.
func (db *DB) ListBookingsFor(ctx context.Context, facilityID, date string) ([]models.Reservation, error) {
	return listReservations(ctx, db, facilityID, date)
}

// ListBookingsForMany fetches reservations of several facilities with a single query.
func (db *DB) ListBookingsForMany(ctx context.Context, facilityIDs []string, date string) (map[string][]models.Reservation, error) {
	result := make(map[string][]models.Reservation, len(facilityIDs))
	if len(facilityIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(facilityIDs))
	args := make([]interface{}, 0, len(facilityIDs)+1)
	args = append(args, date)
	for i, id := range facilityIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`SELECT facility_id, id, start_time, end_time FROM bookings
              WHERE date = ? AND facility_id IN (%s)
              ORDER BY facility_id, start_time, rowid`, strings.Join(placeholders, ", "))

	rows, err := db.QueryContext(ctx, query, args...)
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

// CreateBooking re-reads the facility's day inside an immediate transaction and
// inserts only when nothing overlaps. On overlap it returns *domain.ConflictError.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		// 1. Check overlap inside transaction
		existing, err := listReservations(ctx, tx, booking.FacilityID, booking.Date)
		if err != nil {
			return fmt.Errorf("failed to check conflicts in tx: %w", err)
		}
		if conflict, ok := domain.FindConflict(existing, booking.Start, booking.End); ok {
			return &domain.ConflictError{Conflict: conflict}
		}

		// 2. Create booking
		id := booking.ID
		if id == "" {
			id = uuid.NewString()
		}
		now := time.Now().UTC()

		query := `INSERT INTO bookings (id, facility_id, date, start_time, end_time, user_email, reason, created_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, query,
			id,
			booking.FacilityID,
			booking.Date,
			booking.Start,
			booking.End,
			booking.UserEmail,
			booking.Reason,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		booking.ID = id
		booking.CreatedAt = now
		return nil
	})
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT id, facility_id, date, start_time, end_time, user_email, reason, created_at
              FROM bookings WHERE id = ?`

	var b models.Booking
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID,
		&b.FacilityID,
		&b.Date,
		&b.Start,
		&b.End,
		&b.UserEmail,
		&b.Reason,
		&b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// CountBookings returns the total number of stored bookings.
func (db *DB) CountBookings(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
