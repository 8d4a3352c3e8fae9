package domain

import (
	"errors"
	"fmt"

	"fbs/internal/models"
)

var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrAccountLocked    = errors.New("account temporarily locked")
	ErrSessionNotFound  = errors.New("session not found")
)

const (
	KindValidation   = "validation_error"
	KindInvalidRange = "invalid_range"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindUnauthorized = "unauthorized"
	KindLocked       = "locked"
	KindRateLimited  = "rate_limited"
	KindInternal     = "internal"
)

// ValidationError rejects malformed input before it reaches a store.
type ValidationError struct {
	Field   string
	Message string
	// InvalidRange marks start/end ordering failures.
	InvalidRange bool
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() string {
	if e.InvalidRange {
		return KindInvalidRange
	}
	return KindValidation
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidRange(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), InvalidRange: true}
}

// ConflictError reports an existing booking that overlaps the requested interval.
type ConflictError struct {
	Conflict models.Reservation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time range overlaps booking %s (%s-%s)", e.Conflict.ID, e.Conflict.Start, e.Conflict.End)
}

func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// KindOf classifies err into a stable machine-checkable kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if ve, ok := IsValidation(err); ok {
		return ve.Kind()
	}
	if _, ok := IsConflict(err); ok {
		return KindConflict
	}
	switch {
	case errors.Is(err, ErrFacilityNotFound), errors.Is(err, ErrBookingNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSessionNotFound):
		return KindUnauthorized
	case errors.Is(err, ErrAccountLocked):
		return KindLocked
	}
	return KindInternal
}
