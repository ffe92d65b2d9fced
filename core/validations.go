package core

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"tzevents/pkg/timezone"
)

const maxTitleLength = 255

var shareableIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the custom tags registered:
// iana_timezone and shareable_id.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		_ = validate.RegisterValidation("iana_timezone", func(fl validator.FieldLevel) bool {
			_, err := timezone.Load(fl.Field().String())
			return err == nil
		})

		_ = validate.RegisterValidation("shareable_id", func(fl validator.FieldLevel) bool {
			return shareableIdPattern.MatchString(fl.Field().String())
		})
	})

	return validate
}

// ValidateEvent checks a create request and resolves its times, returning
// the event ready to be saved. Every failure wraps ErrValidation.
func ValidateEvent(request CreateEventRequest) (*Event, error) {
	title := strings.TrimSpace(request.Title)
	if len(title) == 0 {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title is too long (%d characters tops)", ErrValidation, maxTitleLength)
	}

	if err := Validator().Struct(request); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, describe(err))
	}

	zone := request.Timezone
	if zone == "" {
		zone = timezone.UTC
	}

	start, err := timezone.ResolveText(request.StartTime, zone)
	if err != nil {
		return nil, fmt.Errorf("%w: startTime: %w", ErrValidation, err)
	}

	if !representable(start) {
		return nil, fmt.Errorf("%w: startTime: year must be between 1 and 9999 in UTC", ErrValidation)
	}

	event := &Event{
		ShareableId: request.ShareableId,
		Title:       title,
		Description: request.Description,
		StartTime:   start.UTC(),
		Timezone:    zone,
		UserId:      request.UserId,
	}

	if request.EndTime != nil && strings.TrimSpace(*request.EndTime) != "" {
		end, err := timezone.ResolveText(*request.EndTime, zone)
		if err != nil {
			return nil, fmt.Errorf("%w: endTime: %w", ErrValidation, err)
		}

		if !representable(end) {
			return nil, fmt.Errorf("%w: endTime: year must be between 1 and 9999 in UTC", ErrValidation)
		}

		if end.Before(start) {
			return nil, fmt.Errorf("%w: end time must not be before start time", ErrValidation)
		}

		end = end.UTC()
		event.EndTime = &end
	}

	return event, nil
}

// representable reports whether t survives RFC 3339 encoding, which only
// covers four digit years.
func representable(t time.Time) bool {
	year := t.UTC().Year()
	return year >= 1 && year <= 9999
}

func describe(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}

	errs := make([]error, 0, len(invalid))
	for _, fe := range invalid {
		errs = append(errs, fmt.Errorf("field '%s' failed on '%s'", fe.Field(), fe.Tag()))
	}

	return errors.Join(errs...)
}
