package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fbs/internal/config"
	"fbs/internal/domain"
	"fbs/internal/metrics"
	"fbs/internal/models"
	"fbs/internal/timeutil"

	"github.com/rs/zerolog"
)

// AvailabilityService answers read-only availability questions. It never writes.
type AvailabilityService struct {
	repo     domain.BookingRepository
	catalog  domain.FacilityCatalog
	defaults config.BookingConfig
	logger   *zerolog.Logger
}

func NewAvailabilityService(repo domain.BookingRepository, catalog domain.FacilityCatalog, defaults config.BookingConfig, logger *zerolog.Logger) *AvailabilityService {
	if defaults.BusinessStart == "" {
		defaults.BusinessStart = models.DefaultBusinessStart
	}
	if defaults.BusinessEnd == "" {
		defaults.BusinessEnd = models.DefaultBusinessEnd
	}
	if defaults.SlotDuration <= 0 {
		defaults.SlotDuration = models.DefaultSlotDuration
	}
	if defaults.SlotStep <= 0 {
		defaults.SlotStep = models.DefaultSlotStep
	}
	if defaults.GlimpseLimit <= 0 {
		defaults.GlimpseLimit = models.DefaultGlimpseLimit
	}
	return &AvailabilityService{
		repo:     repo,
		catalog:  catalog,
		defaults: defaults,
		logger:   logger,
	}
}

func (s *AvailabilityService) GetDayReservations(ctx context.Context, facilityID, date string) ([]models.Reservation, error) {
	if _, err := s.catalog.Get(strings.TrimSpace(facilityID)); err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if _, err := timeutil.ParseDate(date); err != nil {
		return nil, domain.NewValidationError("date", "%v", err)
	}

	reservations, err := s.repo.ListBookingsFor(ctx, strings.TrimSpace(facilityID), date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	return reservations, nil
}

// glimpseWindow is a resolved request in minutes since midnight.
type glimpseWindow struct {
	from     int
	end      int
	duration int
	step     int
	limit    int
}

func (s *AvailabilityService) resolveWindow(req models.GlimpseRequest) (glimpseWindow, error) {
	businessStart := firstNonEmpty(req.BusinessStart, s.defaults.BusinessStart)
	businessEnd := firstNonEmpty(req.BusinessEnd, s.defaults.BusinessEnd)

	bs, ok := timeutil.ParseTime(businessStart)
	if !ok {
		return glimpseWindow{}, domain.NewValidationError("businessStart", "invalid time %q; expected HH:MM", businessStart)
	}
	be, ok := timeutil.ParseTime(businessEnd)
	if !ok {
		return glimpseWindow{}, domain.NewValidationError("businessEnd", "invalid time %q; expected HH:MM", businessEnd)
	}
	if be <= bs {
		return glimpseWindow{}, domain.NewInvalidRange("business end must be after business start")
	}

	w := glimpseWindow{
		from:     bs,
		end:      be,
		duration: req.Duration,
		step:     req.Step,
		limit:    req.Limit,
	}
	if w.duration <= 0 {
		w.duration = s.defaults.SlotDuration
	}
	if w.step <= 0 {
		w.step = s.defaults.SlotStep
	}
	if w.limit <= 0 {
		w.limit = s.defaults.GlimpseLimit
	}
	if w.limit > models.MaxGlimpseLimit {
		w.limit = models.MaxGlimpseLimit
	}

	// Нераспознанное предпочтительное время игнорируется.
	if pref, ok := timeutil.ParseTime(req.PreferredStart); ok && pref > w.from {
		w.from = pref
	}
	w.from = timeutil.CeilToStep(w.from, w.step)
	return w, nil
}

// GetNextSlotsGlimpse previews up to Limit free slots per facility.
// Known facilities are read with a single batch query.
func (s *AvailabilityService) GetNextSlotsGlimpse(ctx context.Context, req models.GlimpseRequest) (*models.GlimpseResult, error) {
	started := time.Now()
	defer func() { metrics.ObserveGlimpse(time.Since(started)) }()

	date := strings.TrimSpace(req.Date)
	if _, err := timeutil.ParseDate(date); err != nil {
		return nil, domain.NewValidationError("date", "%v", err)
	}
	w, err := s.resolveWindow(req)
	if err != nil {
		return nil, err
	}

	result := &models.GlimpseResult{
		Date:     date,
		Duration: w.duration,
		Items:    make(map[string]models.GlimpseStatus, len(req.FacilityIDs)),
	}

	known := make([]string, 0, len(req.FacilityIDs))
	seen := make(map[string]struct{}, len(req.FacilityIDs))
	for _, raw := range req.FacilityIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		facility, err := s.catalog.Get(id)
		if err != nil || !facility.Active {
			result.Items[id] = models.GlimpseStatus{Status: models.GlimpseNotFound}
			continue
		}
		known = append(known, id)
	}
	if len(known) == 0 {
		return result, nil
	}

	byFacility, err := s.repo.ListBookingsForMany(ctx, known, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	for _, id := range known {
		slots := freeSlots(byFacility[id], w)
		if len(slots) == 0 {
			result.Items[id] = models.GlimpseStatus{Status: models.GlimpseNoSlots}
			continue
		}
		result.Items[id] = models.GlimpseStatus{Status: models.GlimpseOK, Slots: slots}
	}

	s.logger.Debug().
		Str("date", date).
		Int("facilities", len(known)).
		Int("duration", w.duration).
		Msg("glimpse computed")
	return result, nil
}

// freeSlots walks the window in step increments and keeps candidates that
// overlap no reservation.
func freeSlots(reservations []models.Reservation, w glimpseWindow) []models.Slot {
	type span struct{ start, end int }
	busy := make([]span, 0, len(reservations))
	for _, r := range reservations {
		rs, ok1 := timeutil.ParseTime(r.Start)
		re, ok2 := timeutil.ParseTime(r.End)
		if !ok1 || !ok2 {
			continue
		}
		busy = append(busy, span{rs, re})
	}

	var slots []models.Slot
	for start := w.from; start+w.duration <= w.end && len(slots) < w.limit; start += w.step {
		end := start + w.duration
		free := true
		for _, b := range busy {
			if timeutil.IntervalsOverlap(start, end, b.start, b.end) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, models.Slot{Start: timeutil.FormatTime(start), End: timeutil.FormatTime(end)})
		}
	}
	return slots
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
