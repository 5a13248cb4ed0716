package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender executes requests over HTTP.
type Sender struct {
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// SenderOption configures a Sender
type SenderOption func(*Sender)

// WithHTTPClient sets the HTTP client used for exchanges.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger sets the logger that records every exchange.
func WithLogger(logger zerolog.Logger) SenderOption {
	return func(s *Sender) {
		s.logger = logger
	}
}

// NewSender creates a Sender backed by a pooled cleanhttp client.
func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: cleanhttp.DefaultPooledClient(),
		logger: log.Logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send executes req signed with passport. Any completed exchange returns a
// Response whatever its status; only transport failures return an error.
func (s *Sender) Send(ctx context.Context, req *Request, passport Params, userAgent string) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := req.Build(ctx, passport, userAgent)
	if err != nil {
		return nil, &apierrors.TransportError{Method: string(req.Method), URL: req.URL, Err: err}
	}

	start := s.now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warn().Err(err).Str("method", string(req.Method)).Str("path", req.URL).Msg("api request failed")
		return nil, &apierrors.TransportError{Method: string(req.Method), URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apierrors.TransportError{Method: string(req.Method), URL: req.URL, Err: err}
	}

	// POST parameters travel in the body and may carry credentials
	path := req.URL
	if len(req.Params) > 0 && req.Method != POST {
		path += "?" + req.Params.Encode()
	}
	s.logger.Info().
		Str("method", string(req.Method)).
		Str("path", path).
		Float64("kb", float64(len(body))/1024).
		Dur("took", s.now().Sub(start)).
		Int("status", resp.StatusCode).
		Msg("api request")

	return NewResponse(resp.StatusCode, body), nil
}
