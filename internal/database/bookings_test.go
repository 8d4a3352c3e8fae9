package database

import (
	"context"
	"errors"
	"testing"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(facilityID, start, end string) *models.Booking {
	return &models.Booking{
		FacilityID: facilityID,
		Date:       testDate,
		Start:      start,
		End:        end,
		UserEmail:  "student@campus.edu",
	}
}

func TestCreateBooking_AdjacentAndOverlap(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := newBooking(testFacility, "10:00", "11:00")
	require.NoError(t, db.CreateBooking(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	adjacent := newBooking(testFacility, "11:00", "12:00")
	require.NoError(t, db.CreateBooking(ctx, adjacent))

	overlapping := newBooking(testFacility, "10:30", "10:45")
	err := db.CreateBooking(ctx, overlapping)
	ce, ok := domain.IsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, models.Reservation{ID: first.ID, Start: "10:00", End: "11:00"}, ce.Conflict)
	assert.Empty(t, overlapping.ID)

	// другое помещение в то же время свободно
	require.NoError(t, db.CreateBooking(ctx, newBooking("ENG-102", "10:30", "10:45")))

	count, err := db.CountBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestListBookingsFor_SortedByStart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, r := range [][2]string{{"14:00", "15:00"}, {"08:00", "09:00"}, {"11:30", "12:00"}} {
		require.NoError(t, db.CreateBooking(ctx, newBooking(testFacility, r[0], r[1])))
	}

	list, err := db.ListBookingsFor(ctx, testFacility, testDate)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "08:00", list[0].Start)
	assert.Equal(t, "11:30", list[1].Start)
	assert.Equal(t, "14:00", list[2].Start)

	empty, err := db.ListBookingsFor(ctx, testFacility, "2026-02-21")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListBookingsForMany(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateBooking(ctx, newBooking(testFacility, "09:00", "10:00")))
	require.NoError(t, db.CreateBooking(ctx, newBooking(testFacility, "08:00", "09:00")))
	require.NoError(t, db.CreateBooking(ctx, newBooking("SCI-202", "12:00", "13:00")))

	got, err := db.ListBookingsForMany(ctx, []string{testFacility, "SCI-202", "ENG-102"}, testDate)
	require.NoError(t, err)
	require.Len(t, got[testFacility], 2)
	assert.Equal(t, "08:00", got[testFacility][0].Start)
	assert.Len(t, got["SCI-202"], 1)
	assert.Empty(t, got["ENG-102"])

	none, err := db.ListBookingsForMany(ctx, nil, testDate)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := newBooking(testFacility, "10:00", "11:00")
	b.Reason = "Study group"
	require.NoError(t, db.CreateBooking(ctx, b))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.FacilityID, got.FacilityID)
	assert.Equal(t, "Study group", got.Reason)
	assert.Equal(t, "student@campus.edu", got.UserEmail)

	_, err = db.GetBooking(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrBookingNotFound))
}

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())
	ctx := context.Background()

	t.Run("CreateBooking_Error", func(t *testing.T) {
		err := db.CreateBooking(ctx, newBooking(testFacility, "10:00", "11:00"))
		assert.Error(t, err)
		_, isConflict := domain.IsConflict(err)
		assert.False(t, isConflict)
	})

	t.Run("ListBookingsFor_Error", func(t *testing.T) {
		_, err := db.ListBookingsFor(ctx, testFacility, testDate)
		assert.Error(t, err)
	})

	t.Run("ListBookingsForMany_Error", func(t *testing.T) {
		_, err := db.ListBookingsForMany(ctx, []string{testFacility}, testDate)
		assert.Error(t, err)
	})

	t.Run("GetBooking_Error", func(t *testing.T) {
		_, err := db.GetBooking(ctx, "x")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrBookingNotFound))
	})
}
