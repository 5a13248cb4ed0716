// Package user tracks whether the end user is signed in.
package user

import (
	"context"
	"errors"

	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/poken/poseidon/internal/store"
	"github.com/poken/poseidon/internal/token"
	"github.com/poken/poseidon/internal/transport"
	"github.com/rs/zerolog/log"
)

// StatusKey is the session key holding the authentication flag.
const StatusKey = "user.status"

var (
	statusTrue  = []byte("true")
	statusFalse = []byte("false")
)

// Authenticator switches a client between the user token and the shared
// client token.
type Authenticator interface {
	Authenticate(ctx context.Context, authenticated bool) *token.Token
}

// User is the signed-in state of the session owner.
type User struct {
	session store.Store
	client  Authenticator
}

// New creates a User bound to a session and the client it signs in.
func New(session store.Store, client Authenticator) *User {
	return &User{session: session, client: client}
}

// Status reads the authentication flag from session. A missing or
// unreadable flag means not authenticated.
func Status(ctx context.Context, session store.Store) bool {
	v, err := session.Get(ctx, StatusKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read user status")
		}
		return false
	}
	return string(v) == string(statusTrue)
}

// Authenticated reports whether the user is signed in
func (u *User) Authenticated(ctx context.Context) bool {
	return Status(ctx, u.session)
}

// Connect signs the user in with grant. The flag is cleared first and only
// set once the token has been obtained.
func (u *User) Connect(ctx context.Context, grant token.Grant, params transport.Params) error {
	if !grant.Valid() || !grant.Authenticated() {
		return &apierrors.UnsupportedMethodError{Kind: "user grant type", Method: string(grant)}
	}
	if err := u.session.Set(ctx, StatusKey, statusFalse, 0); err != nil {
		return err
	}

	tok := u.client.Authenticate(ctx, true)
	if _, err := tok.Get(ctx, grant, params); err != nil {
		u.client.Authenticate(ctx, false)
		return err
	}
	return u.session.Set(ctx, StatusKey, statusTrue, 0)
}

// Disconnect signs the user out and forgets the user token.
func (u *User) Disconnect(ctx context.Context) error {
	if err := u.session.Set(ctx, StatusKey, statusFalse, 0); err != nil {
		return err
	}
	if err := u.session.Delete(ctx, token.SessionKey); err != nil {
		return err
	}
	u.client.Authenticate(ctx, false)
	return nil
}
