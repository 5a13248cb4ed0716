package iface

import (
	"context"
)

// Param is a single request parameter, kept in command line order
type Param struct {
	Key   string
	Value string
}

// CallInput represents one API call
type CallInput struct {
	Method string
	Path   string
	Params []Param

	// Data replaces the form body of POST and PUT requests when set
	Data        []byte
	ContentType string
}

// APIService defines the interface for raw API calls
type APIService interface {
	// Call performs the request and returns the decoded response content
	Call(ctx context.Context, input *CallInput) (any, error)
}
