package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	iface "github.com/poken/poseidon/internal/service/interface"
)

func TestLoginCommand_Run(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		mockError  error
		wantInput  iface.LoginInput
		wantOutput string
		wantErr    bool
	}{
		{
			name:       "password from flags",
			args:       []string{"login", "-u", "jane", "-p", "s3cret"},
			wantInput:  iface.LoginInput{Method: iface.LoginPassword, Username: "jane", Password: "s3cret"},
			wantOutput: "Successfully logged in",
		},
		{
			name:       "browser code flow",
			args:       []string{"login", "--code"},
			wantInput:  iface.LoginInput{Method: iface.LoginCode},
			wantOutput: "Successfully logged in",
		},
		{
			name: "external identity provider",
			args: []string{"login", "--service", "github", "--service-secret", "gh", "--redirect-uri", "https://app/cb"},
			wantInput: iface.LoginInput{
				Method:        iface.LoginExternal,
				Service:       "github",
				ServiceSecret: "gh",
				RedirectURI:   "https://app/cb",
			},
			wantOutput: "Successfully logged in",
		},
		{
			name:      "returns service errors",
			args:      []string{"login", "-u", "jane", "-p", "wrong"},
			mockError: errors.New("authentication failed: Invalid username and password combination"),
			wantInput: iface.LoginInput{Method: iface.LoginPassword, Username: "jane", Password: "wrong"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotInput *iface.LoginInput
			mockAuth := &MockAuthService{
				LoginFunc: func(ctx context.Context, input *iface.LoginInput) error {
					gotInput = input
					return tt.mockError
				},
			}

			output, err := execute(mockAuth, &MockAPIService{}, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if gotInput == nil {
				t.Fatal("Login was not called")
			}
			if *gotInput != tt.wantInput {
				t.Errorf("Login() input = %+v, want %+v", *gotInput, tt.wantInput)
			}
			if !strings.Contains(output, tt.wantOutput) {
				t.Errorf("Output should contain %q, got: %s", tt.wantOutput, output)
			}
		})
	}
}

func TestLogoutCommand_Run(t *testing.T) {
	called := false
	mockAuth := &MockAuthService{
		LogoutFunc: func(ctx context.Context) error {
			called = true
			return nil
		},
	}

	output, err := execute(mockAuth, &MockAPIService{}, "logout")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !called {
		t.Error("Logout was not called")
	}
	if !strings.Contains(output, "Successfully logged out") {
		t.Errorf("unexpected output: %s", output)
	}

	mockAuth.LogoutFunc = func(ctx context.Context) error { return errors.New("not logged in") }
	if _, err := execute(mockAuth, &MockAPIService{}, "logout"); err == nil {
		t.Error("expected an error when not logged in")
	}
}

func TestConfigureCommand_Run(t *testing.T) {
	var gotID, gotSecret string
	mockAuth := &MockAuthService{
		ConfigureFunc: func(ctx context.Context, clientID, clientSecret string) error {
			gotID, gotSecret = clientID, clientSecret
			return nil
		},
	}

	output, err := execute(mockAuth, &MockAPIService{}, "configure", "--client-id", "app", "--client-secret", "s3cret")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotID != "app" || gotSecret != "s3cret" {
		t.Errorf("Configure() got %q/%q", gotID, gotSecret)
	}
	if !strings.Contains(output, "Credentials saved") {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestTokenCommand_Run(t *testing.T) {
	expires := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	mockAuth := &MockAuthService{
		TokenStatusFunc: func(ctx context.Context) (*iface.TokenStatus, error) {
			return &iface.TokenStatus{
				Status:        "valid",
				Authenticated: true,
				LoggedIn:      true,
				Expires:       expires,
				APIPath:       "https://api.poken.com/rest081/",
			}, nil
		},
	}

	output, err := execute(mockAuth, &MockAPIService{}, "token")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"https://api.poken.com/rest081/", "valid", "user", "2026-10-17 09:30:00"} {
		if !strings.Contains(output, want) {
			t.Errorf("Output should contain %q, got: %s", want, output)
		}
	}

	output, err = execute(mockAuth, &MockAPIService{}, "token", "-o", "json")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(output, `"status": "valid"`) {
		t.Errorf("Output should contain JSON status, got: %s", output)
	}
}
