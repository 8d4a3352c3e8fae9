package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"

	"github.com/google/uuid"
)

// MemoryBookingRepository keeps bookings in process memory. One mutex covers
// the conflict check and the insert, so it is only safe with a single instance.
type MemoryBookingRepository struct {
	mu    sync.Mutex
	byDay map[string][]*models.Booking
	byID  map[string]*models.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		byDay: make(map[string][]*models.Booking),
		byID:  make(map[string]*models.Booking),
	}
}

func dayKey(facilityID, date string) string {
	return facilityID + "|" + date
}

// reservations returns the day in start order, insertion order breaking ties. Caller holds mu.
func (r *MemoryBookingRepository) reservations(facilityID, date string) []models.Reservation {
	day := r.byDay[dayKey(facilityID, date)]
	out := make([]models.Reservation, 0, len(day))
	for _, b := range day {
		out = append(out, b.Reservation())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func (r *MemoryBookingRepository) ListBookingsFor(ctx context.Context, facilityID, date string) ([]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reservations(facilityID, date), nil
}

func (r *MemoryBookingRepository) ListBookingsForMany(ctx context.Context, facilityIDs []string, date string) (map[string][]models.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make(map[string][]models.Reservation, len(facilityIDs))
	for _, id := range facilityIDs {
		if list := r.reservations(id, date); len(list) > 0 {
			result[id] = list
		}
	}
	return result, nil
}

func (r *MemoryBookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.reservations(booking.FacilityID, booking.Date)
	if conflict, ok := domain.FindConflict(existing, booking.Start, booking.End); ok {
		return &domain.ConflictError{Conflict: conflict}
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = time.Now().UTC()

	stored := *booking
	key := dayKey(booking.FacilityID, booking.Date)
	r.byDay[key] = append(r.byDay[key], &stored)
	r.byID[stored.ID] = &stored
	return nil
}

func (r *MemoryBookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	out := *b
	return &out, nil
}

func (r *MemoryBookingRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryBookingRepository) Close() error {
	return nil
}
