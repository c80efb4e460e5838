package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is needed but no refresh
	// token is stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")
)

// NetworkError wraps a transport failure where no HTTP response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response whose body carried no structured error.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// APIError is a non-2xx response with a structured {detail, message} body.
type APIError struct {
	StatusCode int
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: status %d", e.StatusCode)
}

// DecodeError is a 2xx response whose body did not match the expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
