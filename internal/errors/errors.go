// Package errors defines the error taxonomy shared by the API client packages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with Is by callers that do not need the details.
var (
	ErrUnsupportedMethod = errors.New("unsupported method")
	ErrTransport         = errors.New("transport failure")
	ErrAuthentication    = errors.New("authentication failed")
	ErrAPI               = errors.New("api error")
	ErrUnexpectedStatus  = errors.New("unexpected status")
	ErrNotFound          = errors.New("not found")
)

// UnsupportedMethodError is returned when an HTTP verb or an OAuth2 grant type
// is outside the accepted set. It is always raised before any network call.
type UnsupportedMethodError struct {
	Kind   string // "http method" or "grant type"
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported %s %q", e.Kind, e.Method)
}

func (e *UnsupportedMethodError) Unwrap() error {
	return ErrUnsupportedMethod
}

// TransportError wraps connection, DNS and timeout failures.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: failed fetching remote url: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// AuthenticationError is returned when the token endpoint rejects a grant.
type AuthenticationError struct {
	StatusCode  int
	Description string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error (status %d): %s", e.StatusCode, e.Description)
}

func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

// APIError carries the first entry of a structured "error" list returned by the API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Description)
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}

// UnexpectedStatusError is returned for non-200 responses without a recognizable
// error structure.
type UnexpectedStatusError struct {
	StatusCode int
	Path       string
	Content    string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status #%d: %s\n\n%s", e.StatusCode, e.Path, e.Content)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// IsUnauthorized reports whether err carries a 401 status.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401
	}
	var statusErr *UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 401
	}
	return false
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
