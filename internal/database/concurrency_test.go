package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBooking(t *testing.T) {
	db := setupFileDB(t, filepath.Join(t.TempDir(), "concurrency.db"))
	ctx := context.Background()

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	type result struct {
		booking *models.Booking
		err     error
	}
	results := make(chan result, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			// all requests overlap 10:30-11:00
			start := []string{"10:00", "10:15", "10:30"}[i%3]
			b := newBooking(testFacility, start, "11:00")
			results <- result{booking: b, err: db.CreateBooking(ctx, b)}
		}(i)
	}

	wg.Wait()
	close(results)

	var winner *models.Booking
	var conflicts []*domain.ConflictError
	for r := range results {
		if r.err == nil {
			require.Nil(t, winner, "more than one booking succeeded")
			winner = r.booking
			continue
		}
		ce, ok := domain.IsConflict(r.err)
		require.True(t, ok, "unexpected error: %v", r.err)
		conflicts = append(conflicts, ce)
	}

	require.NotNil(t, winner)
	assert.Len(t, conflicts, numGoroutines-1)
	for _, ce := range conflicts {
		assert.Equal(t, winner.ID, ce.Conflict.ID)
	}

	list, err := db.ListBookingsFor(ctx, testFacility, testDate)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
