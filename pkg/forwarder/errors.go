package forwarder

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestCancelled matches every *Error in the Cancelled category.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrDuplicateRequestID is returned when an ID is registered while a
	// token for it is still live.
	ErrDuplicateRequestID = errors.New("request ID already in flight")

	// ErrEmptyPayload is returned for a request without a body.
	ErrEmptyPayload = errors.New("request payload is empty")
)

// Error is the failure type returned by the forwarder. Cause is kept for
// logging and is not reachable through errors.Unwrap.
type Error struct {
	Classification
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Category, e.Status, e.Message)
}

// Is reports cancellation via ErrRequestCancelled.
func (e *Error) Is(target error) bool {
	return target == ErrRequestCancelled && e.Category == CategoryCancelled
}

func newError(c Classification, cause error) *Error {
	return &Error{Classification: c, Cause: cause}
}

// AsError returns err as an *Error, classifying it if needed.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fwdErr *Error
	if errors.As(err, &fwdErr) {
		return fwdErr
	}
	return newError(Classify(err), err)
}
