package service

import (
	"context"
	"fmt"
	"strings"

	"fbs/internal/domain"
	"fbs/internal/events"
	"fbs/internal/metrics"
	"fbs/internal/models"
	"fbs/internal/timeutil"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo     domain.BookingRepository
	catalog  domain.FacilityCatalog
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, catalog domain.FacilityCatalog, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		repo:     repo,
		catalog:  catalog,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateBooking validates the request against the catalog and hands the
// atomic check-and-insert to the repository. Nothing is written when
// validation fails.
func (s *BookingService) CreateBooking(ctx context.Context, identity models.Identity, req domain.CreateBookingRequest) (*models.Booking, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, domain.ErrUnauthorized
	}

	booking, err := s.buildBooking(identity, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if ce, ok := domain.IsConflict(err); ok {
			metrics.IncBookingConflict()
			s.logger.Info().
				Str("facility_id", booking.FacilityID).
				Str("date", booking.Date).
				Str("start", booking.Start).
				Str("end", booking.End).
				Str("conflict_id", ce.Conflict.ID).
				Msg("booking rejected: conflict")
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated()
	s.publishEvent(booking)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("facility_id", booking.FacilityID).
		Str("date", booking.Date).
		Str("start", booking.Start).
		Str("end", booking.End).
		Str("user_email", booking.UserEmail).
		Msg("booking created")

	return booking, nil
}

func (s *BookingService) buildBooking(identity models.Identity, req domain.CreateBookingRequest) (*models.Booking, error) {
	facility, err := s.catalog.Get(strings.TrimSpace(req.FacilityID))
	if err != nil {
		return nil, err
	}
	if !facility.Active {
		return nil, domain.ErrFacilityNotFound
	}

	date := strings.TrimSpace(req.Date)
	if _, err := timeutil.ParseDate(date); err != nil {
		return nil, domain.NewValidationError("date", "%v", err)
	}

	startMin, ok := timeutil.ParseTime(req.Start)
	if !ok {
		return nil, domain.NewValidationError("start", "invalid time %q; expected HH:MM", req.Start)
	}
	endMin, ok := timeutil.ParseTime(req.End)
	if !ok {
		return nil, domain.NewValidationError("end", "invalid time %q; expected HH:MM", req.End)
	}
	if endMin <= startMin {
		return nil, domain.NewInvalidRange("end time must be after start time")
	}

	return &models.Booking{
		FacilityID: facility.ID,
		Date:       date,
		Start:      timeutil.FormatTime(startMin),
		End:        timeutil.FormatTime(endMin),
		UserEmail:  identity.Email,
		Reason:     strings.TrimSpace(req.Reason),
	}, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrBookingNotFound
	}
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) publishEvent(booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventBookingCreated, events.NewBookingPayload(booking)); err != nil {
		s.logger.Error().Err(err).Str("event_type", events.EventBookingCreated).Str("booking_id", booking.ID).Msg("publish event error")
	}
}
