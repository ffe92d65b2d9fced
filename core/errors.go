package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tzevents/pkg/timezone"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrValidation       = errors.New("event validation failed")
	ErrShareableIdTaken = errors.New("shareable id already taken")
)

type Error struct {
	Message string   `json:"message,omitempty"`
	Err     []string `json:"err,omitempty"`
}

func NewError(message string, errs ...error) *Error {
	return &Error{
		Message: message,
		Err: func() []string {
			var msgs []string

			for _, err := range errs {
				if err != nil {
					msgs = append(msgs, err.Error())
				}
			}

			return msgs
		}(),
	}
}

func (e *Error) Error() string {
	//nolint:errchkjson
	data, _ := json.Marshal(e)
	return string(data)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	if len(e.Err) == 0 {
		return nil
	}

	errs := make([]error, len(e.Err))
	for i, err := range e.Err {
		errs[i] = fmt.Errorf("%s", err)
	}

	return errors.Join(errs...)
}

func (e *Error) Messages() []string {
	return e.Err
}

// StatusOf maps an error onto the HTTP status the API answers with.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrShareableIdTaken):
		return http.StatusConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, timezone.ErrUnknownTimezone),
		errors.Is(err, timezone.ErrInvalidDateTime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
