package api

import (
	"errors"
	"reflect"
	"strings"

	"fbs/internal/domain"
	"fbs/internal/timeutil"

	"github.com/go-playground/validator/v10"
)

// newValidator registers the clock and calendar formats used by request bodies.
// Field names in errors follow the json tags.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// RegisterValidation fails only on an empty tag name
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, ok := timeutil.ParseTime(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := timeutil.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// translateValidation converts the first validator failure into a domain error.
func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "is required")
	case "hhmm":
		return domain.NewValidationError(field, "invalid time %q; expected HH:MM", fe.Value())
	case "isodate":
		return domain.NewValidationError(field, "invalid date %q; expected YYYY-MM-DD", fe.Value())
	case "max":
		return domain.NewValidationError(field, "must be at most %s characters", fe.Param())
	}
	return domain.NewValidationError(field, "failed %s check", fe.Tag())
}
