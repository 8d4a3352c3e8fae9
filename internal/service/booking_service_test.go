package service

import (
	"context"
	"errors"
	"testing"

	"fbs/internal/domain"
	"fbs/internal/events"
	"fbs/internal/models"
	"fbs/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var alice = models.Identity{UserID: "u1", Email: "alice@campus.edu"}

func newBookingService(pub domain.EventPublisher) (*BookingService, *repository.MemoryBookingRepository) {
	repo := repository.NewMemoryBookingRepository()
	return NewBookingService(repo, testCatalog(), pub, testLogger()), repo
}

func bookingReq(start, end string) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{FacilityID: testFacility, Date: testDate, Start: start, End: end}
}

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newBookingService(pub)

	first, err := svc.CreateBooking(ctx, alice, bookingReq("10:00", "11:00"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice@campus.edu", first.UserEmail)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = svc.CreateBooking(ctx, alice, bookingReq("11:00", "12:00"))
	require.NoError(t, err, "touching endpoints must not conflict")

	_, err = svc.CreateBooking(ctx, alice, bookingReq("10:30", "10:45"))
	ce, ok := domain.IsConflict(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, first.ID, ce.Conflict.ID)
	assert.Equal(t, "10:00", ce.Conflict.Start)
	assert.Equal(t, "11:00", ce.Conflict.End)

	assert.Equal(t, []string{events.EventBookingCreated, events.EventBookingCreated}, pub.events)
	payload, ok := pub.last.(events.BookingEventPayload)
	require.True(t, ok)
	assert.Equal(t, testFacility, payload.FacilityID)
}

func TestBookingService_NormalizesTimes(t *testing.T) {
	svc, _ := newBookingService(nil)

	b, err := svc.CreateBooking(context.Background(), alice, bookingReq("9:00", "9:30"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", b.Start)
	assert.Equal(t, "09:30", b.End)
}

func TestBookingService_ValidationBeforeWrite(t *testing.T) {
	repo := new(mockBookingRepo)
	svc := NewBookingService(repo, testCatalog(), nil, testLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		req  domain.CreateBookingRequest
		kind string
	}{
		{"end before start", bookingReq("11:00", "10:00"), domain.KindInvalidRange},
		{"end equals start", bookingReq("10:00", "10:00"), domain.KindInvalidRange},
		{"bad start", bookingReq("ten", "11:00"), domain.KindValidation},
		{"bad end", bookingReq("10:00", "25:00"), domain.KindValidation},
		{"bad date", domain.CreateBookingRequest{FacilityID: testFacility, Date: "20-02-2026", Start: "10:00", End: "11:00"}, domain.KindValidation},
		{"unknown facility", domain.CreateBookingRequest{FacilityID: "NOPE-1", Date: testDate, Start: "10:00", End: "11:00"}, domain.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBooking(ctx, alice, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
		})
	}

	repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestBookingService_RequiresIdentity(t *testing.T) {
	svc, _ := newBookingService(nil)

	_, err := svc.CreateBooking(context.Background(), models.Identity{}, bookingReq("10:00", "11:00"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBookingService_RepositoryError(t *testing.T) {
	repo := new(mockBookingRepo)
	repo.On("CreateBooking", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc := NewBookingService(repo, testCatalog(), nil, testLogger())

	_, err := svc.CreateBooking(context.Background(), alice, bookingReq("10:00", "11:00"))
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestBookingService_GetBooking(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookingService(nil)

	created, err := svc.CreateBooking(ctx, alice, bookingReq("10:00", "11:00"))
	require.NoError(t, err)

	got, err := svc.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, testFacility, got.FacilityID)

	_, err = svc.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = svc.GetBooking(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}
