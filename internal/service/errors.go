package service

import (
	"errors"
	"fmt"

	"github.com/slok/sessionbox/internal/model"
)

// ErrorCode is the machine readable kind of an operation error.
type ErrorCode string

const (
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInvalid      ErrorCode = "invalid"
	ErrorCodeLaunchFailed ErrorCode = "launch_failed"
	ErrorCodeInternal     ErrorCode = "internal"
)

// Error is the error returned to operation callers.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Stdout and Stderr have the output captured before a launch failure.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the error code back to the domain errors, so callers on both sides
// of a transport can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrorCodeNotFound:
		return model.ErrNotFound
	case ErrorCodeInvalid:
		return model.ErrNotValid
	case ErrorCodeLaunchFailed:
		return model.ErrLaunchFailed
	}
	return nil
}

// NewError converts an operation error into a coded error.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var launchErr *model.LaunchError
	switch {
	case errors.As(err, &launchErr):
		return &Error{Code: ErrorCodeLaunchFailed, Message: err.Error(), Stdout: launchErr.Stdout, Stderr: launchErr.Stderr}
	case errors.Is(err, model.ErrNotFound):
		return &Error{Code: ErrorCodeNotFound, Message: err.Error()}
	case errors.Is(err, model.ErrNotValid):
		return &Error{Code: ErrorCodeInvalid, Message: err.Error()}
	}

	return &Error{Code: ErrorCodeInternal, Message: err.Error()}
}
