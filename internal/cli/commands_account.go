package cli

import (
	"github.com/jrsteele09/airdrop-session/backend"
	"github.com/spf13/cobra"
)

func newReferralCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "referral",
		Short: "Enter or skip a referral code after sign-up",
	}

	submit := &cobra.Command{
		Use:   "submit <code>",
		Short: "Record who referred you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			resp, err := a.auth.SubmitReferral(cmd.Context(), args[0])
			if err != nil {
				return flowError(a, err)
			}
			msg := resp.Message
			if resp.ReferrerEmail != "" {
				msg += " (referred by " + resp.ReferrerEmail + ")"
			}
			return a.done(msg)
		},
	}

	skip := &cobra.Command{
		Use:   "skip",
		Short: "Continue without a referral code",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			a := app()
			a.auth.SkipReferral()
			return a.done("referral skipped")
		},
	}

	cmd.AddCommand(submit, skip)
	return cmd
}

func newRegisterCommand(app func() *App) *cobra.Command {
	var req backend.RegisterRequest
	var password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			pw, err := readSecret(cmd, password, "Password")
			if err != nil {
				return err
			}
			req.Password = pw
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = pw
			}

			resp, err := a.auth.Register(cmd.Context(), req)
			if err != nil {
				return flowError(a, err)
			}
			msg := resp.Message
			if resp.EmailSent {
				msg += ", check " + req.Email + " for the verification link"
			}
			return a.done(msg)
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Username, "username", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVar(&req.ReferralCode, "referral-code", "", "referral code of the user who invited you")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newPasswordCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset a forgotten password",
	}

	var forgotEmail string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Email a password reset code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			resp, err := a.auth.ForgotPassword(cmd.Context(), forgotEmail)
			if err != nil {
				return flowError(a, err)
			}
			return a.done(resp.Message)
		},
	}
	forgot.Flags().StringVar(&forgotEmail, "email", "", "account email")
	_ = forgot.MarkFlagRequired("email")

	var resetEmail, otp, newPassword, confirm string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with the emailed code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			pw, err := readSecret(cmd, newPassword, "New password")
			if err != nil {
				return err
			}
			if confirm == "" {
				confirm = pw
			}
			resp, err := a.auth.ResetPassword(cmd.Context(), resetEmail, otp, pw, confirm)
			if err != nil {
				return flowError(a, err)
			}
			return a.done(resp.Message)
		},
	}
	reset.Flags().StringVar(&resetEmail, "email", "", "account email")
	reset.Flags().StringVar(&otp, "code", "", "reset code from the email")
	reset.Flags().StringVar(&newPassword, "new-password", "", "new password (read from stdin when omitted)")
	reset.Flags().StringVar(&confirm, "confirm-password", "", "new password confirmation (defaults to --new-password)")
	_ = reset.MarkFlagRequired("email")
	_ = reset.MarkFlagRequired("code")

	cmd.AddCommand(forgot, reset)
	return cmd
}

func newVerifyEmailCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Confirm an email address with the token from the verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			resp, err := a.auth.VerifyEmail(cmd.Context(), args[0])
			if err != nil {
				return flowError(a, err)
			}
			return a.done(resp.Message)
		},
	}

	var email string
	resend := &cobra.Command{
		Use:   "resend",
		Short: "Send a new verification link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			resp, err := a.auth.ResendVerification(cmd.Context(), email)
			if err != nil {
				return flowError(a, err)
			}
			return a.done(resp.Message)
		},
	}
	resend.Flags().StringVar(&email, "email", "", "account email")
	_ = resend.MarkFlagRequired("email")

	cmd.AddCommand(resend)
	return cmd
}
