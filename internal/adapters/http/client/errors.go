package client

import (
	"errors"
	"fmt"
)

// Error constants.
var (
	ErrRequest = errors.New("request failed")
	ErrStatus  = errors.New("unexpected status")
	// ErrDecode marks a success response whose body could not be read as
	// JSON. It is never retried.
	ErrDecode = errors.New("malformed response")
	// ErrEncode marks a request body that could not be built.
	ErrEncode = errors.New("malformed request")
)

// StatusError is a non-success response from the service.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap makes errors.Is(err, ErrStatus) hold.
func (e *StatusError) Unwrap() error { return ErrStatus }
