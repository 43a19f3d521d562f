package memstore

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AuthError indicates the memory service rejected the gateway's credentials.
// A binary, high-confidence signal: one retry will not fix it.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("memory service rejected credentials (status %d)", e.StatusCode)
}

// ServerError indicates a 5xx response from the memory service, or a
// transport fault that made the service unreachable (StatusCode 0).
type ServerError struct {
	StatusCode int
	Err        error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("memory service unreachable: %v", e.Err)
	}
	return fmt.Sprintf("memory service returned status %d", e.StatusCode)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the call exceeded its deadline or the transport
// timed out before a response arrived.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("memory service call timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTimeout reports whether err is a deadline or transport timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsTransient reports whether err should count toward the consecutive
// failure threshold rather than trigger immediate degradation.
func IsTransient(err error) bool {
	return IsTimeout(err) || IsServerError(err)
}
