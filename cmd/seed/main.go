// Command seed creates a SQLite booking database filled with the facility
// catalog and, optionally, a handful of demo bookings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fbs/internal/catalog"
	"fbs/internal/config"
	"fbs/internal/database"
	"fbs/internal/domain"
	"fbs/internal/logging"
	"fbs/internal/models"
	"fbs/internal/timeutil"
)

var demoSlots = []struct{ start, end, reason string }{
	{"09:00", "10:00", "Study group"},
	{"13:00", "14:30", "Project review"},
	{"18:00", "20:00", "Club meeting"},
}

func main() {
	var (
		configPath = flag.String("config", getenv("CONFIG_PATH", "configs/config.yaml"), "config file")
		dbPath     = flag.String("db", os.Getenv("SQLITE_PATH"), "sqlite file (overrides database.path)")
		fresh      = flag.Bool("fresh", false, "delete the database file first")
		demo       = flag.Bool("demo", false, "insert demo bookings")
		demoDate   = flag.String("date", time.Now().Format(timeutil.DateLayout), "date for demo bookings")
		demoCount  = flag.Int("facilities", 3, "number of facilities that get demo bookings")
	)
	flag.Parse()

	if err := run(*configPath, *dbPath, *fresh, *demo, *demoDate, *demoCount); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, fresh, demo bool, demoDate string, demoCount int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" || dbPath == ":memory:" {
		return fmt.Errorf("a file database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if fresh {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
			}
		}
	}

	db, err := database.NewDB(dbPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	cat := catalog.New(cfg.Catalog.ToFacilities())
	if err := db.SyncFacilities(ctx, cat.All()); err != nil {
		return fmt.Errorf("sync facilities: %w", err)
	}

	if demo {
		if _, err := timeutil.ParseDate(demoDate); err != nil {
			return err
		}
		inserted, skipped, err := seedDemo(ctx, db, cat.All(), demoDate, demoCount)
		if err != nil {
			return err
		}
		logger.Info().Int("inserted", inserted).Int("skipped", skipped).Str("date", demoDate).Msg("demo bookings")
	}

	facilities, err := db.CountFacilities(ctx)
	if err != nil {
		return err
	}
	bookings, err := db.CountBookings(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("db_path", dbPath).Int("facilities", facilities).Int("bookings", bookings).Msg("SQLite database ready")
	return nil
}

// seedDemo books the demo slots; slots already taken are skipped so the command can be rerun.
func seedDemo(ctx context.Context, db *database.DB, facilities []models.Facility, date string, count int) (int, int, error) {
	inserted, skipped := 0, 0
	for i, f := range facilities {
		if i >= count {
			break
		}
		for _, slot := range demoSlots {
			err := db.CreateBooking(ctx, &models.Booking{
				FacilityID: f.ID,
				Date:       date,
				Start:      slot.start,
				End:        slot.end,
				UserEmail:  "demo@campus.edu",
				Reason:     slot.reason,
			})
			if _, ok := domain.IsConflict(err); ok {
				skipped++
				continue
			}
			if err != nil {
				return inserted, skipped, fmt.Errorf("demo booking %s %s: %w", f.ID, slot.start, err)
			}
			inserted++
		}
	}
	return inserted, skipped, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
