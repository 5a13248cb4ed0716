// Package di provides dependency injection for the Poseidon CLI.
// It contains the service container and factory functions.
package di

import (
	"io"
	"os"

	"github.com/poken/poseidon/internal/config"
	"github.com/poken/poseidon/internal/service"
	iface "github.com/poken/poseidon/internal/service/interface"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Container holds all service dependencies for the CLI.
// Services are accessed via interfaces to enable mocking in tests.
type Container struct {
	configManager *config.Manager
	sessions      *service.Sessions
	authService   iface.AuthService
	apiService    iface.APIService
}

// NewContainer creates a new dependency container with default implementations
func NewContainer() (*Container, error) {
	configManager, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	return NewContainerWithConfig(configManager, log.Logger, os.Stdout), nil
}

// NewContainerWithConfig wires the default services around configManager.
func NewContainerWithConfig(configManager *config.Manager, logger zerolog.Logger, out io.Writer) *Container {
	sessions := service.NewSessions(configManager, logger)
	return &Container{
		configManager: configManager,
		sessions:      sessions,
		authService:   service.NewAuthService(configManager, sessions, out),
		apiService:    service.NewAPIService(sessions),
	}
}

// NewContainerWithServices creates a container with custom service implementations.
// This is useful for testing with mock services.
func NewContainerWithServices(
	authService iface.AuthService,
	apiService iface.APIService,
) *Container {
	return &Container{
		authService: authService,
		apiService:  apiService,
	}
}

// AuthService returns the authentication service
func (c *Container) AuthService() iface.AuthService {
	return c.authService
}

// APIService returns the API service
func (c *Container) APIService() iface.APIService {
	return c.apiService
}

// Sessions returns the session opener, nil when built from custom services
func (c *Container) Sessions() *service.Sessions {
	return c.sessions
}

// ConfigManager returns the config manager
func (c *Container) ConfigManager() *config.Manager {
	return c.configManager
}
