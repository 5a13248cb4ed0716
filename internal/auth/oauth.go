// Package auth provides the browser based authorization code flow for the CLI.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultCallbackPort is the default port for the local OAuth callback server
	DefaultCallbackPort = 9876

	// DefaultWaitTimeout bounds how long the user has to authorize the CLI
	DefaultWaitTimeout = 5 * time.Minute
)

// Authorization is the result of a successful browser authorization
type Authorization struct {
	Code        string
	RedirectURI string
}

// CodeFlow obtains an authorization code through the user's browser. The
// code is exchanged for a token by the caller.
type CodeFlow struct {
	clientID     string
	grantPath    string
	callbackPort int
	timeout      time.Duration
	out          io.Writer

	// OpenURL opens the authorization page
	OpenURL func(url string) error
}

// NewCodeFlow creates a code flow for the OAuth2 entry point grantPath.
func NewCodeFlow(clientID, grantPath string, out io.Writer) *CodeFlow {
	return &CodeFlow{
		clientID:     clientID,
		grantPath:    grantPath,
		callbackPort: DefaultCallbackPort,
		timeout:      DefaultWaitTimeout,
		out:          out,
		OpenURL:      browser.OpenURL,
	}
}

// SetCallbackPort sets the first port tried for the callback server. Zero
// picks any free port.
func (o *CodeFlow) SetCallbackPort(port int) {
	o.callbackPort = port
}

// SetTimeout sets how long Authorize waits for the callback
func (o *CodeFlow) SetTimeout(timeout time.Duration) {
	o.timeout = timeout
}

// config returns the oauth2 configuration for redirectURI
func (o *CodeFlow) config(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: o.clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  o.grantPath + "authorize",
			TokenURL: o.grantPath + "access_token",
		},
		RedirectURL: redirectURI,
	}
}

// AuthCodeURL returns the authorization page URL
func (o *CodeFlow) AuthCodeURL(redirectURI, state string) string {
	return o.config(redirectURI).AuthCodeURL(state)
}

// Authorize starts a local server, opens the browser on the authorization
// page and waits for the callback with the authorization code.
func (o *CodeFlow) Authorize(ctx context.Context) (*Authorization, error) {
	listener, err := o.listen()
	if err != nil {
		return nil, fmt.Errorf("failed to find available port: %w", err)
	}

	redirectURI := fmt.Sprintf("http://localhost:%d/callback", listener.Addr().(*net.TCPAddr).Port)
	state := uuid.NewString()

	// Channel to receive the authorization code
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		Handler:           callbackHandler(state, codeChan, errChan),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Debug().Err(err).Msg("callback server stopped")
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := o.AuthCodeURL(redirectURI, state)

	fmt.Fprintln(o.out, "Opening browser for authentication...")
	fmt.Fprintf(o.out, "If the browser doesn't open, please visit:\n%s\n\n", authURL)
	if err := o.OpenURL(authURL); err != nil {
		fmt.Fprintf(o.out, "Failed to open browser automatically: %v\n", err)
	}
	fmt.Fprintln(o.out, "Waiting for authentication...")

	// Wait for the callback or timeout
	select {
	case code := <-codeChan:
		return &Authorization{Code: code, RedirectURI: redirectURI}, nil
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(o.timeout):
		return nil, fmt.Errorf("authentication timed out")
	}
}

// listen binds the callback server, trying ten ports from the configured one
func (o *CodeFlow) listen() (net.Listener, error) {
	if o.callbackPort == 0 {
		return net.Listen("tcp", "127.0.0.1:0")
	}
	for port := o.callbackPort; port < o.callbackPort+10; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return listener, nil
		}
	}
	return nil, fmt.Errorf("no available port found")
}

func callbackHandler(expectedState string, codeChan chan<- string, errChan chan<- error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		// Check state parameter
		if query.Get("state") != expectedState {
			report(errChan, fmt.Errorf("state mismatch"))
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}

		if errMsg := query.Get("error"); errMsg != "" {
			report(errChan, fmt.Errorf("OAuth error: %s - %s", errMsg, query.Get("error_description")))
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, resultHTML("Authentication failed. You can close this window."))
			return
		}

		code := query.Get("code")
		if code == "" {
			report(errChan, fmt.Errorf("no authorization code received"))
			http.Error(w, "No code received", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, resultHTML("Authentication successful! You can close this window."))

		select {
		case codeChan <- code:
		default:
		}
	})
	return mux
}

// report delivers err unless an earlier outcome is already pending
func report(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

// resultHTML returns the page shown in the browser after the callback
func resultHTML(message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Poseidon</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background-color: #f5f5f5;
        }
        .container {
            text-align: center;
            padding: 40px;
            background: white;
            border-radius: 8px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Poseidon</h1>
        <p>%s</p>
    </div>
</body>
</html>`, message)
}
