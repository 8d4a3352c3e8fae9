package service

import (
	"context"
	"io"

	"fbs/internal/catalog"
	"fbs/internal/config"
	"fbs/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

const (
	testFacility = "ENG-101"
	testDate     = "2026-02-20"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func testCatalog() *catalog.Catalog {
	return catalog.New(nil)
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		BusinessStart: "08:00",
		BusinessEnd:   "22:00",
		SlotDuration:  60,
		SlotStep:      60,
		GlimpseLimit:  3,
	}
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) ListBookingsFor(ctx context.Context, facilityID, date string) ([]models.Reservation, error) {
	args := m.Called(ctx, facilityID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockBookingRepo) ListBookingsForMany(ctx context.Context, facilityIDs []string, date string) (map[string][]models.Reservation, error) {
	args := m.Called(ctx, facilityIDs, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]models.Reservation), args.Error(1)
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockBookingRepo) Close() error {
	return m.Called().Error(0)
}

type recordingPublisher struct {
	events []string
	last   interface{}
}

func (p *recordingPublisher) PublishJSON(eventType string, payload interface{}) error {
	p.events = append(p.events, eventType)
	p.last = payload
	return nil
}
