package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// TokenCommand represents the token command
type TokenCommand struct {
	root *RootCommand
	cmd  *cobra.Command
}

// NewTokenCommand creates a new token command
func NewTokenCommand(root *RootCommand) *TokenCommand {
	t := &TokenCommand{
		root: root,
	}

	t.cmd = &cobra.Command{
		Use:   "token",
		Short: "Show the cached token",
		Long: `Show the state of the token used for API calls.

The token is empty until the first call, valid until it expires and stale
afterwards. Stale tokens are refreshed on the next call.

Example:
  poseidon token
  poseidon token -o json`,
		Args: cobra.NoArgs,
		RunE: t.Run,
	}

	return t
}

// Command returns the underlying cobra command
func (t *TokenCommand) Command() *cobra.Command {
	return t.cmd
}

// Run executes the token command
func (t *TokenCommand) Run(cmd *cobra.Command, args []string) error {
	status, err := t.root.Container().AuthService().TokenStatus(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if t.root.outputFormat() == "json" {
		return outputJSON(out, status)
	}

	kind := "application"
	if status.Authenticated {
		kind = "user"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "API:\t%s\n", status.APIPath)
	fmt.Fprintf(w, "Logged in:\t%t\n", status.LoggedIn)
	fmt.Fprintf(w, "Token:\t%s\n", status.Status)
	if status.Status != "empty" {
		fmt.Fprintf(w, "Kind:\t%s\n", kind)
		fmt.Fprintf(w, "Expires:\t%s\n", status.Expires.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
