package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apierrors "github.com/poken/poseidon/internal/errors"
	iface "github.com/poken/poseidon/internal/service/interface"
)

func TestCallCommand_Run(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		mockContent   any
		mockError     error
		wantInput     *iface.CallInput
		wantOutput    []string
		wantNotOutput []string
		wantErr       bool
	}{
		{
			name:        "prints flat objects as a table",
			args:        []string{"call", "GET", "object/42"},
			mockContent: map[string]any{"id": float64(42), "name": "badge"},
			wantInput:   &iface.CallInput{Method: "GET", Path: "object/42"},
			wantOutput:  []string{"id", "42", "name", "badge"},
		},
		{
			name:        "passes parameters in order",
			args:        []string{"call", "GET", "object/query", "-p", "q=x", "-p", "limit=10", "-p", "filter=a=b"},
			mockContent: map[string]any{"items": []any{}},
			wantInput: &iface.CallInput{Method: "GET", Path: "object/query", Params: []iface.Param{
				{Key: "q", Value: "x"}, {Key: "limit", Value: "10"}, {Key: "filter", Value: "a=b"},
			}},
			wantOutput: []string{`"items": []`},
		},
		{
			name:        "outputs JSON format",
			args:        []string{"call", "GET", "me", "-o", "json"},
			mockContent: map[string]any{"name": "jane"},
			wantInput:   &iface.CallInput{Method: "GET", Path: "me"},
			wantOutput:  []string{`"name": "jane"`},
		},
		{
			name:        "sends literal data",
			args:        []string{"call", "PUT", "object/1", "--data", `{"a":1}`, "--content-type", "application/json"},
			mockContent: nil,
			wantInput:   &iface.CallInput{Method: "PUT", Path: "object/1", Data: []byte(`{"a":1}`), ContentType: "application/json"},
			wantOutput:  []string{"No content."},
		},
		{
			name:      "rejects malformed parameters",
			args:      []string{"call", "GET", "me", "-p", "novalue"},
			wantErr:   true,
			wantInput: nil,
		},
		{
			name:      "returns api errors",
			args:      []string{"call", "GET", "missing"},
			mockError: &apierrors.APIError{StatusCode: 404, Description: "Object not found"},
			wantInput: &iface.CallInput{Method: "GET", Path: "missing"},
			wantErr:   true,
		},
		{
			name:    "requires method and path",
			args:    []string{"call", "GET"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotInput *iface.CallInput
			mockAPI := &MockAPIService{
				CallFunc: func(ctx context.Context, input *iface.CallInput) (any, error) {
					gotInput = input
					if tt.mockError != nil {
						return nil, tt.mockError
					}
					return tt.mockContent, nil
				},
			}

			output, err := execute(&MockAuthService{}, mockAPI, tt.args...)

			// Check error
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantInput != nil {
				if gotInput == nil {
					t.Fatalf("service was not called")
				}
				if gotInput.Method != tt.wantInput.Method || gotInput.Path != tt.wantInput.Path {
					t.Errorf("Call() got %s %s, want %s %s", gotInput.Method, gotInput.Path, tt.wantInput.Method, tt.wantInput.Path)
				}
				if len(gotInput.Params) != len(tt.wantInput.Params) {
					t.Fatalf("Call() params = %v, want %v", gotInput.Params, tt.wantInput.Params)
				}
				for i := range gotInput.Params {
					if gotInput.Params[i] != tt.wantInput.Params[i] {
						t.Errorf("Call() param %d = %v, want %v", i, gotInput.Params[i], tt.wantInput.Params[i])
					}
				}
				if string(gotInput.Data) != string(tt.wantInput.Data) || gotInput.ContentType != tt.wantInput.ContentType {
					t.Errorf("Call() body = %q (%s), want %q (%s)", gotInput.Data, gotInput.ContentType, tt.wantInput.Data, tt.wantInput.ContentType)
				}
			} else if gotInput != nil {
				t.Errorf("service should not be called, got %+v", gotInput)
			}

			// Check output contains expected strings
			for _, want := range tt.wantOutput {
				if !strings.Contains(output, want) {
					t.Errorf("Output should contain %q, got: %s", want, output)
				}
			}

			for _, notWant := range tt.wantNotOutput {
				if strings.Contains(output, notWant) {
					t.Errorf("Output should not contain %q, got: %s", notWant, output)
				}
			}
		})
	}
}

func TestCallCommand_ReadsDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "object.json")
	if err := os.WriteFile(path, []byte(`{"name":"badge"}`), 0600); err != nil {
		t.Fatal(err)
	}

	var gotData string
	mockAPI := &MockAPIService{
		CallFunc: func(ctx context.Context, input *iface.CallInput) (any, error) {
			gotData = string(input.Data)
			return "ok", nil
		},
	}

	output, err := execute(&MockAuthService{}, mockAPI, "call", "POST", "object", "--data", "@"+path)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gotData != `{"name":"badge"}` {
		t.Errorf("data = %q", gotData)
	}
	if !strings.Contains(output, "ok") {
		t.Errorf("Output should contain %q, got: %s", "ok", output)
	}

	_, err = execute(&MockAuthService{}, mockAPI, "call", "POST", "object", "--data", "@"+path+".missing")
	if err == nil {
		t.Error("expected an error for a missing data file")
	}
}
