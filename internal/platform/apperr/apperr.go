// Package apperr defines the error kinds shared by the domain services and the
// mapping from those kinds to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error for callers. The zero value is KindPersistence so
// that an unclassified failure is never mistaken for a business rule.
type Kind uint8

const (
	KindPersistence Kind = iota
	KindValidation
	KindNotFound
	KindCapacityExceeded
	KindDuplicate
	KindInvalidTransition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindDuplicate:
		return "duplicate_identifier"
	case KindInvalidTransition:
		return "invalid_transition"
	default:
		return "persistence"
	}
}

// Sentinels for errors.Is checks against an *Error of the matching kind.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrDuplicate         = errors.New("duplicate identifier")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("persistence failure")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the typed error returned by services for expected conditions.
type Error struct {
	Kind    Kind
	Entity  string
	Field   string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		b.WriteString(" (" + strings.Join(parts, "; ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindCapacityExceeded:
		return ErrCapacityExceeded
	case KindDuplicate:
		return ErrDuplicate
	case KindInvalidTransition:
		return ErrInvalidTransition
	default:
		return ErrPersistence
	}
}

// Validation reports every invalid field at once.
func Validation(fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// Invalid is shorthand for a single-field validation error.
func Invalid(field, message string) *Error {
	return Validation(FieldError{Field: field, Message: message})
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func CapacityExceeded(entity, id string, capacity int) *Error {
	return &Error{
		Kind:    KindCapacityExceeded,
		Entity:  entity,
		Message: fmt.Sprintf("%s %s is fully booked (capacity %d)", entity, id, capacity),
	}
}

func Duplicate(entity, field string, err error) *Error {
	return &Error{
		Kind:    KindDuplicate,
		Entity:  entity,
		Field:   field,
		Message: fmt.Sprintf("%s with this %s already exists", entity, field),
		Err:     err,
	}
}

func InvalidTransition(entity, from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Entity:  entity,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
	}
}

// Persistence wraps an unexpected storage failure. op names the failed step.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// KindOf returns the kind of err, or KindPersistence for errors that were not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// HTTPStatus maps an error to the status code documented for the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapacityExceeded, KindDuplicate, KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error payload written to clients.
type Body struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	Fields []FieldError `json:"fields,omitempty"`
}

// HTTPError converts err into an echo error. Persistence failures keep the
// original error as Internal so the access log records it while the client
// only sees a generic message.
func HTTPError(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	var e *Error
	if status == http.StatusInternalServerError || !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, Body{
			Error: "internal server error",
			Code:  KindPersistence.String(),
		}).SetInternal(err)
	}
	return echo.NewHTTPError(status, Body{Error: e.Message, Code: e.Kind.String(), Fields: e.Fields})
}
