package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in the JSON error body.
const (
	CodeInvalidPatient      = "invalid_patient"
	CodeInvalidAnswer       = "invalid_answer"
	CodeNotFound            = "not_found"
	CodeWrongPhase          = "wrong_phase"
	CodeInvalidImage        = "invalid_image"
	CodeInternalConsistency = "internal_consistency"
	CodeInternal            = "internal"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Fields carries per-field validation messages.
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error { return New(http.StatusBadRequest, code, err) }

func NotFound(err error) *Error { return New(http.StatusNotFound, CodeNotFound, err) }

func Conflict(code string, err error) *Error { return New(http.StatusConflict, code, err) }

// As extracts an *Error, mapping anything else to a 500.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return New(http.StatusInternalServerError, CodeInternal, err)
}
