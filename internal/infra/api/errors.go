package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no token is available or the authority rejects it.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenExpired is returned when the bearer token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// StatusError is a non-2xx response from the authority.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
	RequestID  string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Path, e.Status, e.Body)
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
