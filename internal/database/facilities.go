package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fbs/internal/models"
)

// SyncFacilities upserts the catalog so bookings can reference facility rows.
func (db *DB) SyncFacilities(ctx context.Context, facilities []models.Facility) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO facilities (id, name, building, capacity, active, updated_at)
                  VALUES (?, ?, ?, ?, ?, ?)
                  ON CONFLICT(id) DO UPDATE SET
                      name = excluded.name,
                      building = excluded.building,
                      capacity = excluded.capacity,
                      active = excluded.active,
                      updated_at = excluded.updated_at`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare facility upsert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, f := range facilities {
			if _, err := stmt.ExecContext(ctx, f.ID, f.Name, f.Building, f.Capacity, f.Active, now); err != nil {
				return fmt.Errorf("failed to upsert facility %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

func (db *DB) CountFacilities(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count facilities: %w", err)
	}
	return count, nil
}
