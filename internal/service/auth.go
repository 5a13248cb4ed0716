package service

import (
	"context"
	"fmt"
	"io"

	"github.com/poken/poseidon/internal/auth"
	"github.com/poken/poseidon/internal/config"
	apierrors "github.com/poken/poseidon/internal/errors"
	iface "github.com/poken/poseidon/internal/service/interface"
	"github.com/poken/poseidon/internal/token"
	"github.com/poken/poseidon/internal/transport"
)

// Authorizer obtains an authorization code from the user
type Authorizer interface {
	Authorize(ctx context.Context) (*auth.Authorization, error)
}

// authService implements iface.AuthService
type authService struct {
	configManager *config.Manager
	sessions      *Sessions
	authorizer    func(clientID, grantPath string) Authorizer
}

// NewAuthService creates a new authentication service. Browser prompts of
// the code flow are written to out.
func NewAuthService(configManager *config.Manager, sessions *Sessions, out io.Writer) iface.AuthService {
	return &authService{
		configManager: configManager,
		sessions:      sessions,
		authorizer: func(clientID, grantPath string) Authorizer {
			return auth.NewCodeFlow(clientID, grantPath, out)
		},
	}
}

// Configure stores the application credentials
func (s *authService) Configure(ctx context.Context, clientID, clientSecret string) error {
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("client id and secret are required")
	}
	if err := s.configManager.SaveClientCredentials(clientID, clientSecret); err != nil {
		return apierrors.Wrapf(err, "failed to save client credentials")
	}
	s.sessions.Reset()
	return nil
}

// Login obtains a user token with the requested grant
func (s *authService) Login(ctx context.Context, input *iface.LoginInput) error {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return err
	}

	// Check if already logged in
	if sess.User.Authenticated(ctx) {
		return fmt.Errorf("already logged in. Use 'poseidon logout' first to log out")
	}

	var (
		grant  token.Grant
		params transport.Params
	)
	switch input.Method {
	case iface.LoginPassword, "":
		grant = token.GrantPassword
		params = transport.P("username", input.Username, "password", input.Password)
	case iface.LoginExternal:
		grant = token.GrantExternal
		params = transport.P("service", input.Service, "service_secret", input.ServiceSecret, "redirect_uri", input.RedirectURI)
	case iface.LoginCode:
		grantPath := token.GrantPath(sess.Client.Path())
		authorization, err := s.authorizer(sess.Client.ID(), grantPath).Authorize(ctx)
		if err != nil {
			return apierrors.Wrapf(err, "authorization failed")
		}
		grant = token.GrantCode
		params = transport.P("code", authorization.Code, "redirect_uri", authorization.RedirectURI)
	default:
		return fmt.Errorf("unknown login method %q", input.Method)
	}

	if err := sess.User.Connect(ctx, grant, params); err != nil {
		return apierrors.Wrapf(err, "authentication failed")
	}
	return nil
}

// Logout forgets the user token
func (s *authService) Logout(ctx context.Context) error {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return err
	}

	if !sess.User.Authenticated(ctx) {
		return fmt.Errorf("not logged in")
	}

	if err := sess.User.Disconnect(ctx); err != nil {
		return apierrors.Wrapf(err, "failed to clear credentials")
	}
	return nil
}

// IsLoggedIn checks if the user is currently authenticated
func (s *authService) IsLoggedIn(ctx context.Context) bool {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return false
	}
	return sess.User.Authenticated(ctx)
}

// TokenStatus reports the state of the token in use
func (s *authService) TokenStatus(ctx context.Context) (*iface.TokenStatus, error) {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}

	tok := sess.Client.Token()
	status := &iface.TokenStatus{
		Status:        tok.Status().String(),
		Authenticated: sess.Client.Authenticated(),
		LoggedIn:      sess.User.Authenticated(ctx),
		APIPath:       sess.Client.Path(),
	}
	if st := tok.State(); st != nil {
		status.Expires = st.Expires
	}
	return status, nil
}
