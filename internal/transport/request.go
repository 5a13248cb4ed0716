// Package transport builds and executes single HTTP exchanges with the REST API.
package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/poken/poseidon/internal/errors"
)

// DefaultTimeout bounds a whole exchange, connection included.
const DefaultTimeout = 120 * time.Second

const formContentType = "application/x-www-form-urlencoded"

// Method is an HTTP verb accepted by the API.
type Method string

// Accepted HTTP methods
const (
	GET    Method = http.MethodGet
	POST   Method = http.MethodPost
	PUT    Method = http.MethodPut
	DELETE Method = http.MethodDelete
)

// Valid reports whether m is one of GET, POST, PUT or DELETE.
func (m Method) Valid() bool {
	switch m {
	case GET, POST, PUT, DELETE:
		return true
	}
	return false
}

// Body is explicit request content with its media type.
type Body struct {
	Data        []byte
	ContentType string
}

// Request is one call to the API. It is built per call and discarded after
// it has been sent.
type Request struct {
	URL     string
	Method  Method
	Params  Params
	Timeout time.Duration

	body        []byte
	contentType string
	hasContent  bool
}

// NewRequest creates a request for url. Methods outside GET, POST, PUT and
// DELETE are rejected.
func NewRequest(url string, method Method, params Params) (*Request, error) {
	if !method.Valid() {
		return nil, &apierrors.UnsupportedMethodError{Kind: "http method", Method: string(method)}
	}
	return &Request{
		URL:     strings.TrimRight(url, "/"),
		Method:  method,
		Params:  params.Clone(),
		Timeout: DefaultTimeout,
	}, nil
}

// Content attaches an explicit body. It replaces the form body of POST
// requests and sets the Content-Type header when contentType is not empty.
func (r *Request) Content(body []byte, contentType string) *Request {
	r.body = body
	r.contentType = contentType
	r.hasContent = true
	return r
}

// Query returns the parameters sent in the query string: the passport,
// followed by the caller parameters for every method except POST.
func (r *Request) Query(passport Params) Params {
	if r.Method == POST {
		return passport.Clone()
	}
	return passport.Merge(r.Params)
}

// Payload returns the request body and its content type.
func (r *Request) Payload() ([]byte, string) {
	switch {
	case r.Method == DELETE:
		return nil, ""
	case r.hasContent:
		return r.body, r.contentType
	case r.Method == POST:
		return []byte(r.Params.Encode()), formContentType
	}
	return nil, ""
}

// Build turns r into an *http.Request signed with passport.
func (r *Request) Build(ctx context.Context, passport Params, userAgent string) (*http.Request, error) {
	target := r.URL
	if query := r.Query(passport).Encode(); query != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query
	}

	var bodyReader io.Reader
	data, contentType := r.Payload()
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, string(r.Method), target, bodyReader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}
