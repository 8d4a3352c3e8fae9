package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgres connects to FBS_TEST_POSTGRES_URL and registers a fresh facility for the test.
func setupPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()
	url := os.Getenv("FBS_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("FBS_TEST_POSTGRES_URL not set")
	}

	logger := zerolog.Nop()
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url, PostgresOptions{}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	facilityID := "TEST-" + uuid.NewString()[:8]
	require.NoError(t, s.SyncFacilities(ctx, []models.Facility{
		{ID: facilityID, Name: "Test Room", Building: "Test", Capacity: 4, Active: true},
	}))
	return s, facilityID
}

func TestPostgresStore_CreateAndConflict(t *testing.T) {
	s, facilityID := setupPostgres(t)
	ctx := context.Background()

	first := &models.Booking{FacilityID: facilityID, Date: testDate, Start: "10:00", End: "11:00", UserEmail: "a@campus.edu"}
	require.NoError(t, s.CreateBooking(ctx, first))

	require.NoError(t, s.CreateBooking(ctx, &models.Booking{
		FacilityID: facilityID, Date: testDate, Start: "11:00", End: "12:00", UserEmail: "b@campus.edu",
	}))

	err := s.CreateBooking(ctx, &models.Booking{
		FacilityID: facilityID, Date: testDate, Start: "10:30", End: "10:45", UserEmail: "c@campus.edu",
	})
	ce, ok := domain.IsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, first.ID, ce.Conflict.ID)

	got, err := s.GetBooking(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@campus.edu", got.UserEmail)

	many, err := s.ListBookingsForMany(ctx, []string{facilityID}, testDate)
	require.NoError(t, err)
	assert.Len(t, many[facilityID], 2)
}

func TestPostgresStore_Concurrent(t *testing.T) {
	s, facilityID := setupPostgres(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateBooking(ctx, &models.Booking{
				FacilityID: facilityID, Date: testDate, Start: "09:00", End: "10:00", UserEmail: "x@campus.edu",
			})
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		_, ok := domain.IsConflict(err)
		assert.True(t, ok, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, success)
}
