// Package token manages the lifecycle of one OAuth2 token: acquisition
// through the supported grants, lazy expiry detection, refresh and
// persistence to the user session or the shared cache.
package token

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/poken/poseidon/internal/store"
	"github.com/poken/poseidon/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Storage keys
const (
	SessionKey = "user.token"
	SharedKey  = "api.token"
)

// DefaultExpiresIn is used when the token endpoint omits expires_in.
const DefaultExpiresIn = time.Hour

// maxExpiresIn bounds expires_in so the lifetime fits a time.Duration.
const maxExpiresIn = 100 * 365 * 24 * time.Hour

// RequestFunc reaches the token endpoint. Requests made through it are signed
// with the application credentials, never with a token.
type RequestFunc func(ctx context.Context, method transport.Method, path string, params transport.Params) (*transport.Response, error)

// Stores are the persistence targets: authenticated tokens go to Session,
// client tokens to Shared.
type Stores struct {
	Session store.Store
	Shared  *store.Shared
}

// tokenResponse is the body returned by the token endpoint
type tokenResponse struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	ExpiresIn        json.Number `json:"expires_in"`
	ErrorDescription string      `json:"error_description"`
}

func (r tokenResponse) expiresIn() time.Duration {
	seconds, err := r.ExpiresIn.Float64()
	if err != nil || seconds <= 0 {
		return DefaultExpiresIn
	}
	if seconds >= maxExpiresIn.Seconds() {
		return maxExpiresIn
	}
	return time.Duration(seconds * float64(time.Second))
}

// Token owns the state of one token. It is safe for concurrent use:
// concurrent refreshes of the same token share one grant request.
type Token struct {
	mu      sync.Mutex
	state   *State
	path    string
	request RequestFunc
	stores  Stores
	nowFunc func() time.Time
	logger  zerolog.Logger
}

// Option configures a Token
type Option func(*Token)

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(t *Token) {
		t.nowFunc = now
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Token) {
		t.logger = logger
	}
}

// WithState starts the token from st instead of the persisted value.
func WithState(st *State) Option {
	return func(t *Token) {
		t.state = st.clone()
	}
}

// New creates a token using grantPath as the OAuth2 entry point. The
// persisted token is loaded from the session store when authenticated is
// true and from the shared cache otherwise.
func New(ctx context.Context, grantPath string, request RequestFunc, stores Stores, authenticated bool, options ...Option) *Token {
	if stores.Session == nil {
		stores.Session = store.NewMemoryStore(0)
	}
	if stores.Shared == nil {
		stores.Shared = store.NewShared(store.NewMemoryStore(0))
	}

	t := &Token{
		path:    grantPath,
		request: request,
		stores:  stores,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}

	switch {
	case t.state != nil:
	case authenticated:
		t.state = t.load(ctx, t.stores.Session, SessionKey)
	default:
		t.state = t.load(ctx, t.stores.Shared, SharedKey)
	}
	return t
}

func (t *Token) now() time.Time {
	return t.nowFunc()
}

// load reads a persisted state, treating unreadable values as absent
func (t *Token) load(ctx context.Context, s store.Store, key string) *State {
	data, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.logger.Warn().Err(err).Str("key", key).Msg("failed to load token")
		}
		return nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil || st.Access == "" {
		t.logger.Warn().Err(err).Str("key", key).Msg("ignoring unreadable token")
		return nil
	}
	return &st
}

// State returns a copy of the current state, nil when empty.
func (t *Token) State() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.clone()
}

// Status returns whether the token is empty, valid or stale.
func (t *Token) Status() Status {
	return t.State().Status(t.now())
}

func (t *Token) setState(st *State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st.clone()
}

// Cached returns the current token if it is still valid. A stale token is
// refreshed first; an empty token returns nil.
func (t *Token) Cached(ctx context.Context) (*State, error) {
	st := t.State()
	if st == nil {
		return nil, nil
	}
	if st.Valid(t.now()) {
		return st, nil
	}
	return t.Refresh(ctx)
}

// Refresh obtains a new token: authenticated tokens use their refresh value,
// client tokens are requested again with the client credentials.
func (t *Token) Refresh(ctx context.Context) (*State, error) {
	st := t.State()
	if st != nil && st.Authenticated {
		return t.refreshUser(ctx, st)
	}

	rejected := ""
	if st != nil {
		rejected = st.Access
	}
	return t.acquireClient(ctx, rejected)
}

// Get requests a token with grant and returns its access value. The whole
// token state is replaced on success.
func (t *Token) Get(ctx context.Context, grant Grant, params transport.Params) (string, error) {
	if grant == GrantClient {
		st, err := t.acquireClient(ctx, "")
		if err != nil {
			return "", err
		}
		return st.Access, nil
	}
	st, err := t.grant(ctx, grant, params)
	if err != nil {
		return "", err
	}
	return st.Access, nil
}

// User requests a user token with a username and password
func (t *Token) User(ctx context.Context, username, password string) (string, error) {
	params, err := encodeParams(passwordParams{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	return t.Get(ctx, GrantPassword, params)
}

// Service requests a user token through an external identity provider
func (t *Token) Service(ctx context.Context, service, secret, redirectURI string) (string, error) {
	params, err := encodeParams(externalParams{Service: service, ServiceSecret: secret, RedirectURI: redirectURI})
	if err != nil {
		return "", err
	}
	return t.Get(ctx, GrantExternal, params)
}

// Code exchanges an authorization code for a user token
func (t *Token) Code(ctx context.Context, code, redirectURI string) (string, error) {
	params, err := encodeParams(codeParams{Code: code, RedirectURI: redirectURI})
	if err != nil {
		return "", err
	}
	return t.Get(ctx, GrantCode, params)
}

// Client requests an anonymous client token
func (t *Token) Client(ctx context.Context) (string, error) {
	return t.Get(ctx, GrantClient, nil)
}

// acquireClient obtains the shared client token. Concurrent callers of the
// process share one grant request, and a valid token already stored by
// someone else is adopted unless it is the one being replaced.
func (t *Token) acquireClient(ctx context.Context, rejected string) (*State, error) {
	v, err := t.stores.Shared.Acquire(SharedKey, func() (any, error) {
		if stored := t.load(ctx, t.stores.Shared, SharedKey); stored != nil &&
			!stored.Authenticated && stored.Access != rejected && stored.Valid(t.now()) {
			t.logger.Debug().Msg("adopting shared client token")
			return stored, nil
		}
		return t.grant(ctx, GrantClient, nil)
	})
	if err != nil {
		return nil, err
	}
	st := v.(*State).clone()
	t.setState(st)
	return st, nil
}

// refreshUser redeems the refresh token of stale. Callers holding the same
// refresh token, in this Token or another one of the process, share the
// request, and a token already renewed by a previous call is returned as is.
func (t *Token) refreshUser(ctx context.Context, stale *State) (*State, error) {
	params, err := encodeParams(refreshParams{RefreshToken: stale.Refresh})
	if err != nil {
		return nil, err
	}
	v, err := t.stores.Shared.Acquire(SessionKey+"/"+stale.Refresh, func() (any, error) {
		if cur := t.State(); cur != nil && cur.Access != stale.Access && cur.Valid(t.now()) {
			return cur, nil
		}
		return t.grant(ctx, GrantRefresh, params)
	})
	if err != nil {
		return nil, err
	}
	fresh := v.(*State)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != nil && t.state.Access == fresh.Access {
		return t.state.clone(), nil
	}
	// renewed by another Token, persist it to this session too
	t.state = fresh.clone()
	if err := t.persistLocked(ctx, fresh.Expires.Sub(t.now())); err != nil {
		return nil, err
	}
	return t.state.clone(), nil
}

// grant performs the token endpoint request and replaces the state
func (t *Token) grant(ctx context.Context, grant Grant, params transport.Params) (*State, error) {
	if !grant.Valid() {
		return nil, &apierrors.UnsupportedMethodError{Kind: "grant type", Method: string(grant)}
	}

	params = params.Clone()
	params.Set("grant_type", string(grant))
	params.Set("response_type", "token")

	endpoint := t.path + "access_token"
	t.logger.Debug().Str("grant_type", string(grant)).Msg("requesting token")

	resp, err := t.request(ctx, transport.POST, endpoint, params)
	if err != nil {
		return nil, err
	}

	var body tokenResponse
	// lenient: a non JSON body leaves every field empty
	_ = resp.Decode(&body)

	if resp.Status() != http.StatusOK {
		if body.ErrorDescription != "" {
			return nil, &apierrors.AuthenticationError{StatusCode: resp.Status(), Description: body.ErrorDescription}
		}
		return nil, &apierrors.UnexpectedStatusError{StatusCode: resp.Status(), Path: endpoint, Content: resp.String()}
	}
	if body.AccessToken == "" {
		return nil, &apierrors.AuthenticationError{StatusCode: resp.Status(), Description: "token response has no access_token"}
	}

	st := &State{
		Access:        body.AccessToken,
		Authenticated: grant.Authenticated(),
	}
	if st.Authenticated {
		st.Refresh = body.RefreshToken
		if st.Refresh == "" && grant == GrantRefresh {
			// the endpoint does not rotate refresh tokens
			st.Refresh, _ = params.Get("refresh_token")
		}
		if st.Refresh == "" {
			return nil, &apierrors.AuthenticationError{StatusCode: resp.Status(), Description: "token response has no refresh_token"}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st
	if err := t.cacheLocked(ctx, body.expiresIn(), 0); err != nil {
		return nil, err
	}
	return t.state.clone(), nil
}

// Cache extends the token lifetime to now+expiresIn and persists it. The
// write is skipped while the stored expiry is at least min(postpone,
// expiresIn) away; postpone <= 0 means expiresIn.
func (t *Token) Cache(ctx context.Context, expiresIn, postpone time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == nil {
		return nil
	}
	return t.cacheLocked(ctx, expiresIn, postpone)
}

func (t *Token) cacheLocked(ctx context.Context, expiresIn, postpone time.Duration) error {
	if postpone <= 0 || postpone > expiresIn {
		postpone = expiresIn
	}

	now := t.now()
	if !t.state.Expires.IsZero() && !t.state.Expires.Before(now.Add(postpone)) {
		return nil
	}
	t.state.Expires = now.Add(expiresIn)
	return t.persistLocked(ctx, expiresIn)
}

// persistLocked writes the state to its store. ttl applies to the shared
// store only.
func (t *Token) persistLocked(ctx context.Context, ttl time.Duration) error {
	data, err := json.Marshal(t.state)
	if err != nil {
		return err
	}
	if t.state.Authenticated {
		// use the session for the user token
		return t.stores.Session.Set(ctx, SessionKey, data, 0)
	}
	return t.stores.Shared.Set(ctx, SharedKey, data, ttl)
}
