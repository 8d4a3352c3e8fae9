package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fbs/internal/domain"
	"fbs/internal/models"
)

const (
	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "none"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "ok"})
}

func (s *HTTPServer) handleFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minCapacity, err := queryInt(q.Get("minCapacity"), "minCapacity")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if minCapacity < 0 {
		s.writeDomainError(w, domain.NewValidationError("minCapacity", "must not be negative"))
		return
	}
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	pageSize, err := queryInt(q.Get("pageSize"), "pageSize")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.svc.Catalog.List(models.FacilityFilter{
		Query:       strings.TrimSpace(q.Get("q")),
		MinCapacity: minCapacity,
		Equipment:   splitCSV(q.Get("equipment")),
		Page:        page,
		PageSize:    pageSize,
	}))
}

func (s *HTTPServer) handleFacility(w http.ResponseWriter, r *http.Request) {
	facility, err := s.svc.Catalog.Get(r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, facility)
}

func (s *HTTPServer) handleDayAvailability(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		s.writeDomainError(w, domain.NewValidationError("date", "is required"))
		return
	}

	reservations, err := s.svc.Availability.GetDayReservations(r.Context(), facilityID, date)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DayReservations{
		FacilityID:   facilityID,
		Date:         date,
		Reservations: reservations,
	})
}

func (s *HTTPServer) handleGlimpse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := splitCSV(q.Get("ids"))
	if len(ids) == 0 {
		s.writeDomainError(w, domain.NewValidationError("ids", "is required"))
		return
	}
	if s.maxIDs > 0 && len(ids) > s.maxIDs {
		s.writeDomainError(w, domain.NewValidationError("ids", "at most %d ids per request", s.maxIDs))
		return
	}

	req := models.GlimpseRequest{
		FacilityIDs:    ids,
		Date:           strings.TrimSpace(q.Get("date")),
		PreferredStart: strings.TrimSpace(q.Get("start")),
		BusinessStart:  strings.TrimSpace(q.Get("businessStart")),
		BusinessEnd:    strings.TrimSpace(q.Get("businessEnd")),
	}
	var err error
	if req.Duration, err = queryInt(q.Get("duration"), "duration"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.Step, err = queryInt(q.Get("step"), "step"); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if req.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		s.writeDomainError(w, err)
		return
	}

	res, err := s.svc.Availability.GetNextSlotsGlimpse(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		s.writeDomainError(w, domain.ErrUnauthorized)
		return
	}

	var body domain.CreateBookingRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.writeDomainError(w, translateValidation(err))
		return
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), identity, body)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	User      models.Identity `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.validate.Struct(body); err != nil {
		s.writeDomainError(w, translateValidation(err))
		return
	}

	session, err := s.svc.Auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		User:      session.Identity(),
		ExpiresAt: session.ExpiresAt,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, identity)
}

func (s *HTTPServer) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Exporter == nil {
		writeErrorBody(w, http.StatusNotFound, errorBody{Kind: domain.KindNotFound, Message: "export disabled"})
		return
	}
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		s.writeDomainError(w, domain.NewValidationError("date", "is required"))
		return
	}

	// Книга собирается в буфер, чтобы ошибка ушла как JSON.
	var buf bytes.Buffer
	if err := s.svc.Exporter.WriteDaySchedule(r.Context(), &buf, date, splitCSV(q.Get("ids"))); err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "schedule-"+date+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type errorBody struct {
	Kind     string              `json:"kind"`
	Message  string              `json:"message"`
	Conflict *models.Reservation `json:"conflict,omitempty"`
}

func statusForKind(kind string) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidRange:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindLocked, domain.KindRateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeDomainError maps err onto {kind, message[, conflict]}. Internal
// failures are logged and reported with a generic message.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	body := errorBody{Kind: kind, Message: err.Error()}

	switch kind {
	case domain.KindConflict:
		ce, _ := domain.IsConflict(err)
		conflict := ce.Conflict
		body.Conflict = &conflict
		body.Message = "time range overlaps an existing booking"
	case domain.KindUnauthorized:
		body.Message = domain.ErrUnauthorized.Error()
	case domain.KindInternal:
		s.log.Error().Err(err).Msg("request failed")
		body.Message = "internal error"
	}
	writeErrorBody(w, statusForKind(kind), body)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body errorBody) {
	writeJSON(w, statusCode, body)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "request body is required")
		}
		return domain.NewValidationError("body", "invalid JSON body: %v", err)
	}
	if decoder.More() {
		return domain.NewValidationError("body", "unexpected data after JSON object")
	}
	return nil
}

func queryInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(field, "must be an integer")
	}
	return n, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
