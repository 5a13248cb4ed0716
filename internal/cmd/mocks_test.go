package cmd

import (
	"bytes"
	"context"

	"github.com/poken/poseidon/internal/di"
	iface "github.com/poken/poseidon/internal/service/interface"
)

// MockAuthService is a mock implementation of iface.AuthService
type MockAuthService struct {
	ConfigureFunc   func(ctx context.Context, clientID, clientSecret string) error
	LoginFunc       func(ctx context.Context, input *iface.LoginInput) error
	LogoutFunc      func(ctx context.Context) error
	IsLoggedInFunc  func(ctx context.Context) bool
	TokenStatusFunc func(ctx context.Context) (*iface.TokenStatus, error)
}

func (m *MockAuthService) Configure(ctx context.Context, clientID, clientSecret string) error {
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(ctx, clientID, clientSecret)
	}
	return nil
}

func (m *MockAuthService) Login(ctx context.Context, input *iface.LoginInput) error {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, input)
	}
	return nil
}

func (m *MockAuthService) Logout(ctx context.Context) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}

func (m *MockAuthService) IsLoggedIn(ctx context.Context) bool {
	if m.IsLoggedInFunc != nil {
		return m.IsLoggedInFunc(ctx)
	}
	return true
}

func (m *MockAuthService) TokenStatus(ctx context.Context) (*iface.TokenStatus, error) {
	if m.TokenStatusFunc != nil {
		return m.TokenStatusFunc(ctx)
	}
	return &iface.TokenStatus{Status: "empty"}, nil
}

// MockAPIService is a mock implementation of iface.APIService
type MockAPIService struct {
	CallFunc func(ctx context.Context, input *iface.CallInput) (any, error)
}

func (m *MockAPIService) Call(ctx context.Context, input *iface.CallInput) (any, error) {
	if m.CallFunc != nil {
		return m.CallFunc(ctx, input)
	}
	return nil, nil
}

// execute runs the CLI with mocked services and returns its output
func execute(authService iface.AuthService, apiService iface.APIService, args ...string) (string, error) {
	root := NewRootCommand()
	root.SetContainer(di.NewContainerWithServices(authService, apiService))

	var out bytes.Buffer
	root.Command().SetOut(&out)
	root.Command().SetErr(&out)
	root.Command().SetArgs(args)

	err := root.Command().Execute()
	return out.String(), err
}
