// Package cmd provides the command-line interface for Poseidon.
// It contains all cobra commands and their implementations.
package cmd

import (
	"fmt"
	"os"

	"github.com/poken/poseidon/internal/config"
	"github.com/poken/poseidon/internal/di"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

// RootCommand represents the root CLI command
type RootCommand struct {
	container *di.Container
	cmd       *cobra.Command

	// Subcommands
	configureCmd *ConfigureCommand
	loginCmd     *LoginCommand
	logoutCmd    *LogoutCommand
	callCmd      *CallCommand
	tokenCmd     *TokenCommand
	serveCmd     *ServeCommand
}

// NewRootCommand creates a new root command
func NewRootCommand() *RootCommand {
	r := &RootCommand{}

	r.cmd = &cobra.Command{
		Use:   "poseidon",
		Short: "Poseidon - Command line client for the Poken API",
		Long: `Poseidon is a command-line client for the Poken REST API.

It signs every call with an OAuth2 token, obtains and refreshes tokens
on its own and retries a call once when the API rejects the token.

To get started, run:
  poseidon configure   - Store your application credentials
  poseidon login       - Sign in with your Poken account
  poseidon call GET me - Call the API`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.initialize()
		},
	}

	// Global flags
	r.cmd.PersistentFlags().StringP("output", "o", "text", "Output format (text, json)")
	r.cmd.PersistentFlags().Bool("verbose", false, "Log every API exchange")

	r.configureCmd = NewConfigureCommand(r)
	r.loginCmd = NewLoginCommand(r)
	r.logoutCmd = NewLogoutCommand(r)
	r.callCmd = NewCallCommand(r)
	r.tokenCmd = NewTokenCommand(r)
	r.serveCmd = NewServeCommand(r)

	// Add subcommands
	r.cmd.AddCommand(r.configureCmd.Command())
	r.cmd.AddCommand(r.loginCmd.Command())
	r.cmd.AddCommand(r.logoutCmd.Command())
	r.cmd.AddCommand(r.callCmd.Command())
	r.cmd.AddCommand(r.tokenCmd.Command())
	r.cmd.AddCommand(r.serveCmd.Command())

	return r
}

// initialize sets up logging and the DI container
func (r *RootCommand) initialize() error {
	verbose, _ := r.cmd.PersistentFlags().GetBool("verbose")
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	// Skip if container is already set (e.g., for testing)
	if r.container != nil {
		return nil
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	var err error
	r.container, err = di.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

// outputFormat returns the value of the global output flag
func (r *RootCommand) outputFormat() string {
	format, _ := r.cmd.PersistentFlags().GetString("output")
	return format
}

// Execute runs the root command
func (r *RootCommand) Execute() error {
	return r.cmd.Execute()
}

// Command returns the underlying cobra command
func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

// Container returns the DI container
func (r *RootCommand) Container() *di.Container {
	return r.container
}

// SetContainer sets a custom container (for testing)
func (r *RootCommand) SetContainer(c *di.Container) {
	r.container = c
}

// Execute is the main entry point for the CLI
func Execute() error {
	root := NewRootCommand()
	return root.Execute()
}

// ExitWithError prints an error message and exits with code 1
func ExitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
