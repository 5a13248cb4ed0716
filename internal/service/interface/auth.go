// Package iface defines service interfaces for the Poseidon CLI.
// These interfaces enable dependency injection and mocking for tests.
package iface

import (
	"context"
	"time"
)

// LoginMethod selects how the user token is obtained
type LoginMethod string

// Login methods
const (
	LoginPassword LoginMethod = "password"
	LoginCode     LoginMethod = "code"
	LoginExternal LoginMethod = "external"
)

// LoginInput represents the input for signing in
type LoginInput struct {
	Method LoginMethod

	// password
	Username string
	Password string

	// external identity provider
	Service       string
	ServiceSecret string
	RedirectURI   string
}

// TokenStatus describes the cached token
type TokenStatus struct {
	Status        string    `json:"status"`
	Authenticated bool      `json:"authenticated"`
	LoggedIn      bool      `json:"logged_in"`
	Expires       time.Time `json:"expires,omitempty"`
	APIPath       string    `json:"api_path"`
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Configure stores the application credentials
	Configure(ctx context.Context, clientID, clientSecret string) error

	// Login obtains a user token and marks the user as signed in
	Login(ctx context.Context, input *LoginInput) error

	// Logout forgets the user token
	Logout(ctx context.Context) error

	// IsLoggedIn checks if the user is currently authenticated
	IsLoggedIn(ctx context.Context) bool

	// TokenStatus reports the state of the token in use
	TokenStatus(ctx context.Context) (*TokenStatus, error)
}
