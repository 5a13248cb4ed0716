package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poken/poseidon/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ServeCommand represents the serve command
type ServeCommand struct {
	root *RootCommand
	cmd  *cobra.Command

	addr         string
	cookieSecret string
}

// NewServeCommand creates a new serve command
func NewServeCommand(root *RootCommand) *ServeCommand {
	s := &ServeCommand{
		root: root,
	}

	s.cmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the API to browser applications",
		Long: `Serve the Poken API over HTTP.

Every visitor gets its own session cookie and can sign in with
POST /login (username, password) and out with POST /logout. Requests to
/api/<path> are forwarded with the visitor's token, or the shared
application token for anonymous visitors.

Session cookies are encrypted with keys derived from --cookie-secret (or
POSEIDON_COOKIE_SECRET). Without one, random keys are used and sessions do
not survive a restart. Cookies are marked Secure unless --addr is a loopback
address, so serve other addresses behind HTTPS.

Example:
  poseidon serve --addr 127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: s.Run,
	}

	s.cmd.Flags().StringVar(&s.addr, "addr", "127.0.0.1:8080", "Listen address")
	s.cmd.Flags().StringVar(&s.cookieSecret, "cookie-secret", "", "Secret signing the session cookies")

	return s
}

// Command returns the underlying cobra command
func (s *ServeCommand) Command() *cobra.Command {
	return s.cmd
}

// Run executes the serve command
func (s *ServeCommand) Run(cmd *cobra.Command, args []string) error {
	container := s.root.Container()
	if container.Sessions() == nil {
		return fmt.Errorf("serve requires the default services")
	}

	secret := s.cookieSecret
	if secret == "" && container.ConfigManager() != nil {
		secret = container.ConfigManager().GetEnv("COOKIE_SECRET", "")
	}
	if secret == "" {
		log.Warn().Msg("using random cookie keys, sessions end with the process")
	}

	cookies, err := server.NewCookieStore(secret, !loopback(s.addr))
	if err != nil {
		return fmt.Errorf("failed to create cookie keys: %w", err)
	}

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           server.New(container.Sessions(), cookies, log.Logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving the Poken API on http://%s\n", s.addr)

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loopback reports whether addr only accepts local connections
func loopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
