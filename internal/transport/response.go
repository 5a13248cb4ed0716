package transport

import (
	"encoding/json"
	"fmt"
)

// Response is an immutable status code and raw body pair.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewResponse creates a response
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{StatusCode: statusCode, Body: body}
}

// Status returns the HTTP status code
func (r *Response) Status() int {
	return r.StatusCode
}

// Content decodes the body into a generic value: map[string]any, []any or a
// scalar. Empty or malformed bodies decode to nil.
func (r *Response) Content() any {
	if len(r.Body) == 0 {
		return nil
	}
	var content any
	if err := json.Unmarshal(r.Body, &content); err != nil {
		return nil
	}
	return content
}

// Decode strictly decodes the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("failed to parse response: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// String returns the raw body
func (r *Response) String() string {
	return string(r.Body)
}
