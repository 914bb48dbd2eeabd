// Package apperr defines the user-facing error taxonomy. Every error that
// reaches an HTTP handler is turned into a transient notice by its Kind.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an error for the user
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthRequired
	KindForbidden
	KindUploadFailed
	KindFetchFailed
	KindNotFound
	KindConflict
	KindConfirmationRequired
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown_error",
	KindValidation:           "validation_error",
	KindAuthRequired:         "auth_required",
	KindForbidden:            "forbidden",
	KindUploadFailed:         "upload_failed",
	KindFetchFailed:          "fetch_failed",
	KindNotFound:             "not_found",
	KindConflict:             "conflict",
	KindConfirmationRequired: "confirmation_required",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// Status maps the kind onto an HTTP status code
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUploadFailed:
		return http.StatusBadGateway
	case KindFetchFailed:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindConfirmationRequired:
		return http.StatusPreconditionRequired
	}
	return http.StatusInternalServerError
}

// Error is an error with a Kind and a message safe to show to the user
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field problems for validation errors
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap attaches a kind and a user message to err
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Validation builds a validation error listing the offending fields. fields
// maps a field to the rule it broke; only "required" failures are reported
// as empty fields.
func Validation(fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	msg := "Будь ласка, заповніть всі обов'язкові поля: "
	for f, rule := range fields {
		names = append(names, f)
		if rule != "required" {
			msg = "Перевірте правильність полів: "
		}
	}
	sort.Strings(names)
	return &Error{
		Kind:    KindValidation,
		Message: msg + strings.Join(names, ", "),
		Fields:  fields,
	}
}

// KindOf returns the kind of err, KindUnknown for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err has the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
