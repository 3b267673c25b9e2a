package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jrsteele09/airdrop-session/identity"
	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/jrsteele09/airdrop-session/oauthflow"
	"github.com/jrsteele09/airdrop-session/refresh"
	"github.com/jrsteele09/airdrop-session/server"
	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newOAuthCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Google sign-in",
	}

	var returnURL string
	var wait time.Duration
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google through the local callback server",
		Long: `Starts a loopback callback server, prints the Google sign-in URL and waits
for the browser to come back. New accounts are sent to the referral page,
returning accounts to the dashboard.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOAuthLogin(cmd, app(), returnURL, wait)
		},
	}
	login.Flags().StringVar(&returnURL, "return", navigation.RouteDashboard, "app route to return to after sign-in")
	login.Flags().DurationVar(&wait, "wait", 5*time.Minute, "how long to wait for the browser")

	cmd.AddCommand(login)
	return cmd
}

func runOAuthLogin(cmd *cobra.Command, a *App, returnURL string, wait time.Duration) error {
	ctx := cmd.Context()

	listener, err := net.Listen("tcp", a.cfg.GetCallbackAddr())
	if err != nil {
		return fmt.Errorf("[oauth login] listen: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	verifier, err := identity.NewVerifier(ctx, a.cfg.GetGoogleIssuer(), a.cfg.GetGoogleClientID())
	if err != nil {
		_ = listener.Close()
		return err
	}
	resolver := oauthflow.NewResolver(a.api, a.manager, a.nav,
		oauthflow.WithTimeout(a.cfg.GetResolveTimeout()),
		oauthflow.WithLogger(a.logger),
	)
	srv, err := server.New(a.cfg, baseURL, server.Deps{
		OAuth2:   refresh.ProviderConfig(a.cfg, baseURL+server.RouteCallback),
		Verifier: verifier,
		Policy:   oauthflow.NewSignInPolicy(a.api, oauthflow.WithPolicyLogger(a.logger)),
		Resolver: resolver,
		Sessions: a.sessions,
	}, server.WithDefaultExpiry(a.cfg.GetDefaultAccessTokenExpiry()), server.WithLogger(a.logger))
	if err != nil {
		_ = listener.Close()
		return err
	}

	authURL, err := srv.BeginAuth(returnURL)
	if err != nil {
		_ = listener.Close()
		return err
	}

	httpServer := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer, listener)
	}()

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
	a.logger.Info().Str("callback", srv.CallbackURL()).Msg("waiting for the browser")

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var runErr error
	select {
	case <-srv.Done():
	case err := <-serveErr:
		runErr = err
	case <-waitCtx.Done():
		runErr = fmt.Errorf("[oauth login] no sign-in completed: %w", waitCtx.Err())
	}

	resolver.Wait()
	if err := shutdown(httpServer); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return runErr
	}

	res := srv.Result()
	if res.Err != nil {
		return res.Err
	}
	return a.out.Format(result{
		Message: "signed in with Google as " + res.Identity.Email,
		Next:    res.Target,
	})
}

func listenAndServe(srv *http.Server, listener net.Listener) error {
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func newRefreshCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the Google access token if it has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			ctx := cmd.Context()

			sess, err := a.sessions.Load(ctx)
			if errors.Is(err, storage.ErrNotFound) {
				return a.out.Format(result{Message: "no Google session stored"})
			}
			if err != nil {
				return err
			}

			guard := refresh.New(refresh.ProviderConfig(a.cfg, ""),
				refresh.WithDefaultExpiry(a.cfg.GetDefaultAccessTokenExpiry()),
				refresh.WithLogger(a.logger),
			)
			fresh := guard.EnsureFreshToken(ctx, sess)
			if fresh != sess {
				if err := a.sessions.Save(ctx, fresh); err != nil {
					return err
				}
			}
			if fresh.NeedsReauth() {
				return errors.Wrapf(errors.ErrRefreshAccessToken, "sign in again with 'airdropctl oauth login'")
			}
			if fresh.Expired(time.Now()) {
				return errors.Wrapf(errors.ErrNoRefreshToken, "access token expired, sign in again with 'airdropctl oauth login'")
			}

			msg := "access token valid until " + fresh.Expiry().Format(time.RFC3339)
			if fresh.Token != sess.Token {
				msg = "access token refreshed, valid until " + fresh.Expiry().Format(time.RFC3339)
			}
			return a.out.Format(result{Message: msg})
		},
	}
}
