package service

import (
	"context"
	"strings"

	iface "github.com/poken/poseidon/internal/service/interface"
	"github.com/poken/poseidon/internal/transport"
)

// apiService implements iface.APIService
type apiService struct {
	sessions *Sessions
}

// NewAPIService creates a new API service
func NewAPIService(sessions *Sessions) iface.APIService {
	return &apiService{sessions: sessions}
}

// Call performs the request through the session client
func (s *apiService) Call(ctx context.Context, input *iface.CallInput) (any, error) {
	sess, err := s.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}

	params := make(transport.Params, 0, len(input.Params))
	for _, p := range input.Params {
		params.Set(p.Key, p.Value)
	}

	var body *transport.Body
	if input.Data != nil {
		body = &transport.Body{Data: input.Data, ContentType: input.ContentType}
	}

	method := transport.Method(strings.ToUpper(input.Method))
	return sess.Client.Open(ctx, method, input.Path, params, body)
}
