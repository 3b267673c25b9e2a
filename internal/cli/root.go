// Package cli implements the airdropctl commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/airdrop-session/internal/config"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	output  string
	driver  string

	// store, when set, is used instead of opening the configured driver
	store storage.Store
	app   *App
}

// RootOption defines a function type to modify the root command.
type RootOption func(*rootOptions)

// WithStore runs every command against store
func WithStore(store storage.Store) RootOption {
	return func(o *rootOptions) {
		o.store = store
	}
}

// NewRootCommand builds the airdropctl command tree
func NewRootCommand(options ...RootOption) *cobra.Command {
	opts := &rootOptions{}
	for _, opt := range options {
		opt(opts)
	}

	root := &cobra.Command{
		Use:   "airdropctl",
		Short: "Sign in to the airdrop platform and manage the local session",
		Long: `airdropctl signs in to the airdrop platform with a password or Google
and keeps the role scoped session (user or admin) in local storage.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg := config.New()
			setupLogging(cfg, cmd.ErrOrStderr())

			out, err := NewFormatter(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			store := opts.store
			if store == nil {
				if store, err = OpenStore(cmd.Context(), cfg, opts.driver); err != nil {
					return err
				}
			}
			opts.app, err = NewApp(cfg, store, out)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if opts.app == nil || opts.store != nil {
				return nil
			}
			return opts.app.Close()
		},
	}

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd == root {
			displayAppname(cmd.OutOrStdout(), config.EnvVars{}.GetAppName())
		}
		defaultHelp(cmd, args)
	})

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	root.PersistentFlags().StringVar(&opts.driver, "storage", "", "storage driver: file, redis or memory (default from STORAGE_DRIVER)")

	app := func() *App { return opts.app }
	root.AddCommand(
		newLoginCommand(app),
		newAdminCommand(app),
		newLogoutCommand(app),
		newStatusCommand(app),
		newMeCommand(app),
		newOAuthCommand(app),
		newRefreshCommand(app),
		newReferralCommand(app),
		newRegisterCommand(app),
		newPasswordCommand(app),
		newVerifyEmailCommand(app),
	)
	return root
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	_, _ = fmt.Fprintln(w, myFigure.String())
}

// readSecret returns value, or reads one line from in when value is empty
func readSecret(cmd *cobra.Command, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt+": ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(prompt))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// result is the common shape of a flow command's output
type result struct {
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Next    string `json:"next,omitempty" yaml:"next,omitempty"`
}

func (r result) String() string {
	switch {
	case r.Next == "":
		return r.Message
	case r.Message == "":
		return "next: " + r.Next
	default:
		return r.Message + "\nnext: " + r.Next
	}
}

func (a *App) done(message string) error {
	return a.out.Format(result{Message: message, Next: a.navigated()})
}
