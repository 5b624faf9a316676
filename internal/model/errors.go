package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrLaunchFailed is returned when a command process could not be started at all.
	ErrLaunchFailed = errors.New("launch failed")
)

// LaunchError is the error returned when a command could not be started. It carries
// the output captured before the failure, if any.
type LaunchError struct {
	Stdout string
	Stderr string
	Cause  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLaunchFailed, e.Cause)
}

// Unwrap allows matching both ErrLaunchFailed and the underlying cause.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Cause}
}
