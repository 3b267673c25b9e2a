package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/jrsteele09/airdrop-session/internal/utils"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/spf13/cobra"
)

func newLoginCommand(app func() *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a user with email and password",
		Example: `  airdropctl login --email user@example.com
  airdropctl login --email user@example.com --password secret`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			pw, err := readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			if err := a.auth.PasswordLogin(cmd.Context(), email, pw); err != nil {
				return flowError(a, err)
			}
			return a.done("signed in as " + email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin panel session commands",
	}

	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the admin panel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			pw, err := readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			if err := a.auth.AdminLogin(cmd.Context(), email, pw); err != nil {
				return flowError(a, err)
			}
			return a.done("signed in to the admin panel as " + email)
		},
	}
	login.Flags().StringVar(&email, "email", "", "admin email")
	login.Flags().StringVar(&password, "password", "", "admin password (read from stdin when omitted)")
	_ = login.MarkFlagRequired("email")

	cmd.AddCommand(login)
	return cmd
}

func newLogoutCommand(app func() *App) *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove every stored token and the OAuth session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			role, err := authctx.ParseRole(roleName)
			if err != nil {
				return err
			}
			if err := a.auth.Logout(cmd.Context(), role); err != nil {
				return err
			}
			return a.done("signed out")
		},
	}
	cmd.Flags().StringVar(&roleName, "role", string(authctx.RoleUser), "role whose login page to return to")
	return cmd
}

func newMeCommand(app func() *App) *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Show the profile behind the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			role := authctx.RoleUser
			if roleName != "" {
				parsed, err := authctx.ParseRole(roleName)
				if err != nil {
					return err
				}
				role = parsed
			} else if current, ok := a.manager.Context(cmd.Context()); ok {
				role = current
			}
			profile, err := a.auth.RequireSession(cmd.Context(), role)
			if err != nil {
				return flowError(a, err)
			}
			return a.out.Format(profileView(*profile))
		},
	}
	cmd.Flags().StringVar(&roleName, "role", "", "user or admin (default: the active role)")
	return cmd
}

type profileView backend.Profile

func (p profileView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "email:          %s\n", p.Email)
	fmt.Fprintf(&b, "username:       %s\n", utils.Value(p.Username))
	fmt.Fprintf(&b, "email verified: %t\n", p.EmailVerified)
	fmt.Fprintf(&b, "admin:          %t\n", p.IsAdmin)
	fmt.Fprintf(&b, "referral code:  %s\n", p.ReferralCode)
	fmt.Fprintf(&b, "referred by:    %s\n", utils.Value(p.ReferredBy))
	fmt.Fprintf(&b, "mining points:  %.2f", p.MiningPoints)
	return b.String()
}

func newStatusCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which role is active and which tokens are stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			ctx := cmd.Context()

			view := statusView{Authenticated: a.manager.IsAuthenticated(ctx)}
			if role, ok := a.manager.Context(ctx); ok {
				view.Context = string(role)
			}
			for _, role := range authctx.Roles {
				rs := roleStatus{Role: string(role)}
				if tok, ok := a.manager.TokenFor(ctx, role); ok {
					rs.Stored = true
					if claims, err := session.TokenClaims(tok); err == nil {
						rs.Subject = claims.Subject
						if !claims.ExpiresAt.IsZero() {
							rs.ExpiresAt = utils.Ptr(claims.ExpiresAt)
						}
					}
				}
				view.Roles = append(view.Roles, rs)
			}
			if sess, err := a.sessions.Load(ctx); err == nil && sess.IsOAuth() {
				view.OAuth = &oauthStatus{
					ExpiresAt:       sess.Expiry(),
					HasRefreshToken: sess.RefreshToken != "",
					Error:           sess.Error,
				}
			}
			return a.out.Format(view)
		},
	}
}

type roleStatus struct {
	Role      string     `json:"role" yaml:"role"`
	Stored    bool       `json:"stored" yaml:"stored"`
	Subject   string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

type oauthStatus struct {
	ExpiresAt       time.Time `json:"expires_at" yaml:"expires_at"`
	HasRefreshToken bool      `json:"has_refresh_token" yaml:"has_refresh_token"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type statusView struct {
	Context       string       `json:"context,omitempty" yaml:"context,omitempty"`
	Authenticated bool         `json:"authenticated" yaml:"authenticated"`
	Roles         []roleStatus `json:"roles" yaml:"roles"`
	OAuth         *oauthStatus `json:"oauth,omitempty" yaml:"oauth,omitempty"`
}

func (v statusView) String() string {
	var b strings.Builder
	ctx := v.Context
	if ctx == "" {
		ctx = "none"
	}
	fmt.Fprintf(&b, "context:       %s\n", ctx)
	fmt.Fprintf(&b, "authenticated: %t\n", v.Authenticated)
	for _, rs := range v.Roles {
		state := "absent"
		if rs.Stored {
			state = "stored"
			if rs.ExpiresAt != nil {
				state += ", expires " + rs.ExpiresAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(&b, "%-6s token:   %s\n", rs.Role, state)
	}
	if v.OAuth != nil {
		fmt.Fprintf(&b, "oauth session: expires %s", v.OAuth.ExpiresAt.Format(time.RFC3339))
		if v.OAuth.Error != "" {
			fmt.Fprintf(&b, " (%s)", v.OAuth.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// flowError prints where the flow navigated, if anywhere, and returns err
func flowError(a *App, err error) error {
	if detail := backend.Detail(err); detail != "" {
		err = fmt.Errorf("%s: %w", detail, err)
	}
	if next := a.navigated(); next != "" {
		a.logger.Info().Str("next", next).Msg("redirected")
	}
	return err
}
