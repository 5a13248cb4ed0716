package cmd

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	iface "github.com/poken/poseidon/internal/service/interface"
	"github.com/spf13/cobra"
)

// LoginCommand represents the login command
type LoginCommand struct {
	root *RootCommand
	cmd  *cobra.Command

	username      string
	password      string
	code          bool
	service       string
	serviceSecret string
	redirectURI   string
}

// NewLoginCommand creates a new login command
func NewLoginCommand(root *RootCommand) *LoginCommand {
	l := &LoginCommand{
		root: root,
	}

	l.cmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in with your Poken account",
		Long: `Sign in with your Poken account.

By default you are prompted for your username and password. Use --code to
authorize in the browser instead, or --service to sign in through an
external identity provider. The user token is stored in the local session.

Example:
  poseidon login
  poseidon login --code
  poseidon login --service github --service-secret <secret> --redirect-uri <uri>`,
		RunE: l.Run,
	}

	l.cmd.Flags().StringVarP(&l.username, "username", "u", "", "Poken username")
	l.cmd.Flags().StringVarP(&l.password, "password", "p", "", "Poken password")
	l.cmd.Flags().BoolVar(&l.code, "code", false, "Authorize in the browser")
	l.cmd.Flags().StringVar(&l.service, "service", "", "External identity provider")
	l.cmd.Flags().StringVar(&l.serviceSecret, "service-secret", "", "Secret issued by the external identity provider")
	l.cmd.Flags().StringVar(&l.redirectURI, "redirect-uri", "", "Redirect URI registered with the external identity provider")

	return l
}

// Command returns the underlying cobra command
func (l *LoginCommand) Command() *cobra.Command {
	return l.cmd
}

// Run executes the login command
func (l *LoginCommand) Run(cmd *cobra.Command, args []string) error {
	input, err := l.input()
	if err != nil {
		return err
	}

	// Get auth service from DI container
	authService := l.root.Container().AuthService()

	if err := authService.Login(cmd.Context(), input); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged in to Poken!")
	return nil
}

// input builds the login input from the flags, prompting for missing
// password credentials
func (l *LoginCommand) input() (*iface.LoginInput, error) {
	switch {
	case l.code:
		return &iface.LoginInput{Method: iface.LoginCode}, nil
	case l.service != "":
		return &iface.LoginInput{
			Method:        iface.LoginExternal,
			Service:       l.service,
			ServiceSecret: l.serviceSecret,
			RedirectURI:   l.redirectURI,
		}, nil
	}

	username := l.username
	if username == "" {
		if err := survey.AskOne(&survey.Input{
			Message: "Username:",
		}, &username, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
	}

	password := l.password
	if password == "" {
		if err := survey.AskOne(&survey.Password{
			Message: "Password:",
		}, &password, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
	}

	return &iface.LoginInput{
		Method:   iface.LoginPassword,
		Username: username,
		Password: password,
	}, nil
}
