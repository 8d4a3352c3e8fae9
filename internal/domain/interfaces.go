package domain

import (
	"context"
	"time"

	"fbs/internal/models"
)

// BookingRepository is the single writer of booking records. CreateBooking
// must run its conflict check and insert atomically per facility and date.
type BookingRepository interface {
	ListBookingsFor(ctx context.Context, facilityID, date string) ([]models.Reservation, error)
	ListBookingsForMany(ctx context.Context, facilityIDs []string, date string) (map[string][]models.Reservation, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	Ping(ctx context.Context) error
	Close() error
}

type FacilityCatalog interface {
	List(filter models.FacilityFilter) models.Page[models.Facility]
	Get(id string) (models.Facility, error)
	All() []models.Facility
}

type SessionRepository interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	// RegisterFailure counts a failed login for key within window and returns the running total.
	RegisterFailure(ctx context.Context, key string, window time.Duration) (int, error)
	FailureCount(ctx context.Context, key string) (int, error)
	ResetFailures(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, identity models.Identity, req CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
}

type AvailabilityService interface {
	GetDayReservations(ctx context.Context, facilityID, date string) ([]models.Reservation, error)
	GetNextSlotsGlimpse(ctx context.Context, req models.GlimpseRequest) (*models.GlimpseResult, error)
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (models.Identity, error)
}

// CreateBookingRequest carries client input; the requester comes from the identity.
type CreateBookingRequest struct {
	FacilityID string `json:"facilityId" validate:"required"`
	Date       string `json:"date" validate:"required,isodate"`
	Start      string `json:"start" validate:"required,hhmm"`
	End        string `json:"end" validate:"required,hhmm"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}
