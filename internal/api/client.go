// Package api provides the client for the Poken REST API. Calls are signed
// with the current OAuth2 token, and a rejected token is refreshed and the
// call retried once.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/poken/poseidon/internal/token"
	"github.com/poken/poseidon/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults applied by New
const (
	DefaultFormat        = "json"
	DefaultUserAgent     = "Poseidon/2.0"
	DefaultUsageLifetime = 24000 * time.Hour
	DefaultUsagePostpone = 6 * time.Hour
)

// Options configures a Client
type Options struct {
	// ID and Secret are the application credentials.
	ID     string
	Secret string
	// Path is the REST base URL, e.g. https://api.poken.com/rest081/
	Path      string
	Format    string
	UserAgent string
	Timeout   time.Duration

	HTTPClient *http.Client
	Logger     *zerolog.Logger

	// Authenticated selects the user token from the session instead of the
	// shared client token.
	Authenticated bool

	// Every successful call extends the token lifetime to UsageLifetime,
	// persisting it at most once per UsagePostpone.
	UsageLifetime time.Duration
	UsagePostpone time.Duration

	Now func() time.Time
}

// Client is the API facade.
type Client struct {
	id        string
	secret    string
	path      string
	format    string
	userAgent string
	timeout   time.Duration

	usageLifetime time.Duration
	usagePostpone time.Duration

	sender *transport.Sender
	stores token.Stores
	logger zerolog.Logger
	now    func() time.Time

	mu            sync.RWMutex
	token         *token.Token
	authenticated bool
}

// New creates a client and loads its persisted token.
func New(ctx context.Context, opts Options, stores token.Stores) (*Client, error) {
	if opts.ID == "" || opts.Secret == "" {
		return nil, fmt.Errorf("client id and secret are required")
	}
	if !strings.Contains(opts.Path, "://") {
		return nil, fmt.Errorf("invalid api path %q", opts.Path)
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	if opts.Format != DefaultFormat {
		return nil, &apierrors.UnsupportedMethodError{Kind: "format", Method: opts.Format}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = transport.DefaultTimeout
	}
	if opts.UsageLifetime <= 0 {
		opts.UsageLifetime = DefaultUsageLifetime
	}
	if opts.UsagePostpone <= 0 {
		opts.UsagePostpone = DefaultUsagePostpone
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Client{
		id:            opts.ID,
		secret:        opts.Secret,
		path:          strings.TrimRight(opts.Path, "/") + "/",
		format:        opts.Format,
		userAgent:     opts.UserAgent,
		timeout:       opts.Timeout,
		usageLifetime: opts.UsageLifetime,
		usagePostpone: opts.UsagePostpone,
		sender:        transport.NewSender(transport.WithHTTPClient(opts.HTTPClient), transport.WithLogger(logger)),
		stores:        stores,
		logger:        logger,
		now:           opts.Now,
	}
	c.Authenticate(ctx, opts.Authenticated)
	return c, nil
}

// ID returns the application id
func (c *Client) ID() string {
	return c.id
}

// Secret returns the application secret
func (c *Client) Secret() string {
	return c.secret
}

// Path returns the REST base URL
func (c *Client) Path() string {
	return c.path
}

// Format returns the response format requested from the API
func (c *Client) Format() string {
	return c.format
}

// Token returns the token manager in use.
func (c *Client) Token() *token.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether the client uses the user token
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// Authenticate switches between the user token and the shared client token,
// reloading the token from the matching store.
func (c *Client) Authenticate(ctx context.Context, authenticated bool) *token.Token {
	tok := token.New(ctx, token.GrantPath(c.path), c.credentialRequest, c.stores, authenticated,
		token.WithNowFunc(c.now), token.WithLogger(c.logger))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
	c.authenticated = authenticated
	return tok
}

// passport returns the parameters that identify the caller: the format and
// either the access token or the application credentials.
func (c *Client) passport(access string) transport.Params {
	if access != "" {
		return transport.P("_format", c.format, "access_token", access)
	}
	return transport.P("_format", c.format, "client_id", c.id, "client_secret", c.secret)
}

// url resolves path against the base URL unless it is already absolute.
func (c *Client) url(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return c.path + strings.TrimLeft(path, "/")
}

// Request sends a single request signed with access, or with the
// application credentials when access is empty. It never retries.
func (c *Client) Request(ctx context.Context, method transport.Method, path string, params transport.Params, body *transport.Body, access string) (*transport.Response, error) {
	req, err := transport.NewRequest(c.url(path), method, params)
	if err != nil {
		return nil, err
	}
	req.Timeout = c.timeout
	if body != nil {
		req.Content(body.Data, body.ContentType)
	}
	return c.sender.Send(ctx, req, c.passport(access), c.userAgent)
}

func (c *Client) credentialRequest(ctx context.Context, method transport.Method, path string, params transport.Params) (*transport.Response, error) {
	return c.Request(ctx, method, path, params, nil, "")
}

// Open calls the API and returns the decoded content of the response.
func (c *Client) Open(ctx context.Context, method transport.Method, path string, params transport.Params, body *transport.Body) (any, error) {
	resp, err := c.open(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}
	return resp.Content(), nil
}

func (c *Client) open(ctx context.Context, method transport.Method, path string, params transport.Params, body *transport.Body) (*transport.Response, error) {
	if !method.Valid() {
		return nil, &apierrors.UnsupportedMethodError{Kind: "http method", Method: string(method)}
	}

	tok := c.Token()
	access, err := c.access(ctx, tok)
	if err != nil {
		return nil, err
	}

	resp, err := c.Request(ctx, method, path, params, body, access)
	if err != nil {
		return nil, err
	}

	if resp.Status() == http.StatusUnauthorized {
		c.logger.Debug().Str("path", path).Msg("token rejected, refreshing")
		st, err := tok.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = c.Request(ctx, method, path, params, body, st.Access)
		if err != nil {
			return nil, err
		}
	}

	if resp.Status() != http.StatusOK {
		return nil, statusError(resp, path)
	}

	if err := tok.Cache(ctx, c.usageLifetime, c.usagePostpone); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist token")
	}
	return resp, nil
}

// access returns the cached token, requesting a client token when there is none.
func (c *Client) access(ctx context.Context, tok *token.Token) (string, error) {
	st, err := tok.Cached(ctx)
	if err != nil {
		return "", err
	}
	if st != nil {
		return st.Access, nil
	}
	return tok.Client(ctx)
}

// errorResponse is the error body returned by the API
type errorResponse struct {
	Error []struct {
		Description string `json:"description"`
	} `json:"error"`
}

func statusError(resp *transport.Response, path string) error {
	var body errorResponse
	if err := resp.Decode(&body); err == nil && len(body.Error) > 0 && body.Error[0].Description != "" {
		return &apierrors.APIError{
			StatusCode:  resp.Status(),
			Description: body.Error[0].Description,
		}
	}
	return &apierrors.UnexpectedStatusError{
		StatusCode: resp.Status(),
		Path:       path,
		Content:    resp.String(),
	}
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, params transport.Params) (any, error) {
	return c.Open(ctx, transport.GET, path, params, nil)
}

// Post performs a POST request with params as the form body
func (c *Client) Post(ctx context.Context, path string, params transport.Params) (any, error) {
	return c.Open(ctx, transport.POST, path, params, nil)
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, path string, params transport.Params, body *transport.Body) (any, error) {
	return c.Open(ctx, transport.PUT, path, params, body)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, params transport.Params) (any, error) {
	return c.Open(ctx, transport.DELETE, path, params, nil)
}
