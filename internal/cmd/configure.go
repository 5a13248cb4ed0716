package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// ConfigureCommand represents the configure command
type ConfigureCommand struct {
	root *RootCommand
	cmd  *cobra.Command

	clientID     string
	clientSecret string
}

// NewConfigureCommand creates a new configure command
func NewConfigureCommand(root *RootCommand) *ConfigureCommand {
	c := &ConfigureCommand{
		root: root,
	}

	c.cmd = &cobra.Command{
		Use:   "configure",
		Short: "Store the application credentials",
		Long: `Store the client id and secret of your Poken application.

The credentials are written to ~/.poseidon/config.json. The
POSEIDON_CLIENT_ID and POSEIDON_CLIENT_SECRET environment variables take
precedence over the stored values.

Example:
  poseidon configure
  poseidon configure --client-id <id> --client-secret <secret>`,
		RunE: c.Run,
	}

	c.cmd.Flags().StringVar(&c.clientID, "client-id", "", "Application client id")
	c.cmd.Flags().StringVar(&c.clientSecret, "client-secret", "", "Application client secret")

	return c
}

// Command returns the underlying cobra command
func (c *ConfigureCommand) Command() *cobra.Command {
	return c.cmd
}

// Run executes the configure command
func (c *ConfigureCommand) Run(cmd *cobra.Command, args []string) error {
	clientID := c.clientID
	if clientID == "" {
		if err := survey.AskOne(&survey.Input{
			Message: "Client id:",
		}, &clientID, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	clientSecret := c.clientSecret
	if clientSecret == "" {
		if err := survey.AskOne(&survey.Password{
			Message: "Client secret:",
		}, &clientSecret, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if err := c.root.Container().AuthService().Configure(cmd.Context(), clientID, clientSecret); err != nil {
		return err
	}

	if cm := c.root.Container().ConfigManager(); cm != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Credentials saved to %s.\n", cm.ConfigPath())
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Credentials saved.")
	return nil
}
