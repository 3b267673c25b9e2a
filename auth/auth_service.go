// Package auth runs the password, admin and referral flows and guards
// protected pages. Every token it obtains is stored through the auth
// context manager.
package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/airdrop-session/authctx"
	"github.com/jrsteele09/airdrop-session/backend"
	apperrors "github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/jrsteele09/airdrop-session/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend is the subset of the platform API the login flows call
type Backend interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.TokenResponse, error)
	Me(ctx context.Context, token string) (*backend.Profile, error)
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error)
	SubmitReferral(ctx context.Context, token, referralCode string) (*backend.ReferralResponse, error)
	ForgotPassword(ctx context.Context, email string) (*backend.MessageResponse, error)
	ResetPassword(ctx context.Context, req backend.ResetPasswordRequest) (*backend.MessageResponse, error)
	VerifyEmail(ctx context.Context, verificationToken string) (*backend.MessageResponse, error)
	ResendVerification(ctx context.Context, email string) (*backend.MessageResponse, error)
}

// Service provides the login, logout and page-guard operations
type Service struct {
	backend   Backend
	manager   *authctx.Manager
	nav       navigation.Navigator
	sessions  *session.Store // optional, cleared on logout
	validator *Validator
	logger    zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithOAuthSessions makes Logout also drop the stored OAuth session
func WithOAuthSessions(store *session.Store) ServiceOption {
	return func(s *Service) {
		s.sessions = store
	}
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService initializes a Service with required dependencies.
func NewService(api Backend, manager *authctx.Manager, nav navigation.Navigator, options ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] backend is required")
	}
	if manager == nil {
		return nil, errors.New("[NewService] auth context manager is required")
	}
	if nav == nil {
		return nil, errors.New("[NewService] navigator is required")
	}

	s := &Service{
		backend:   api,
		manager:   manager,
		nav:       nav,
		validator: NewValidator(),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// PasswordLogin signs a user in with email and password. A rejection that
// asks for email verification sends the user to the verification page.
func (s *Service) PasswordLogin(ctx context.Context, email, password string) error {
	if err := s.validator.ValidateUserCredentials(email, password); err != nil {
		return errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	resp, err := s.backend.Login(ctx, backend.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		if detail := backend.Detail(err); requiresVerification(detail) {
			s.nav.Navigate(navigation.RouteVerificationRequired)
			return errors.WithMessage(apperrors.ErrEmailNotVerified, detail)
		}
		return errors.Wrap(err, "[Service.PasswordLogin] login")
	}

	if err := s.manager.Activate(ctx, authctx.RoleUser, resp.AccessToken); err != nil {
		return errors.Wrap(err, "[Service.PasswordLogin] activate")
	}
	s.logger.Info().Str("email", email).Msg("user signed in")
	s.nav.Navigate(navigation.RouteDashboard)
	return nil
}

// AdminLogin signs into the admin surface. The account's email must be verified.
func (s *Service) AdminLogin(ctx context.Context, email, password string) error {
	if err := s.validator.ValidateUserCredentials(email, password); err != nil {
		return errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	resp, err := s.backend.Login(ctx, backend.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return errors.Wrap(err, "[Service.AdminLogin] login")
	}

	profile, err := s.backend.Me(ctx, resp.AccessToken)
	if err != nil {
		return errors.Wrap(err, "[Service.AdminLogin] me")
	}
	if !profile.EmailVerified {
		return errors.WithMessage(apperrors.ErrEmailNotVerified, AdminUnverifiedErr.Error())
	}

	if err := s.manager.Activate(ctx, authctx.RoleAdmin, resp.AccessToken); err != nil {
		return errors.Wrap(err, "[Service.AdminLogin] activate")
	}
	s.logger.Info().Str("email", email).Bool("is_admin", profile.IsAdmin).Msg("admin signed in")
	s.nav.Navigate(navigation.RouteAdminDashboard)
	return nil
}

// RequireSession guards a page for role. A missing token or a rejected one
// sends the user to the role's login page; a rejected token also tears down
// every stored credential.
func (s *Service) RequireSession(ctx context.Context, role authctx.Role) (*backend.Profile, error) {
	if !role.Valid() {
		return nil, errors.Wrapf(apperrors.ErrInvalidRole, "[Service.RequireSession] %q", role)
	}

	token, ok := s.manager.TokenFor(ctx, role)
	if !ok {
		s.nav.Navigate(LoginPage(role))
		return nil, errors.Wrap(apperrors.ErrUnauthorized, NoAuthTokenErr.Error())
	}

	profile, err := s.backend.Me(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.teardown(ctx)
			s.nav.Navigate(LoginPage(role))
			return nil, errors.Wrap(err, "[Service.RequireSession] session rejected")
		}
		return nil, errors.Wrap(err, "[Service.RequireSession] me")
	}

	if role == authctx.RoleAdmin && !profile.EmailVerified {
		s.teardown(ctx)
		s.nav.Navigate(LoginPage(role))
		return nil, errors.WithMessage(apperrors.ErrEmailNotVerified, AdminUnverifiedErr.Error())
	}

	if current, ok := s.manager.Context(ctx); !ok || current != role {
		if err := s.manager.SetContext(ctx, role); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record auth context")
		}
	}
	return profile, nil
}

// Logout removes every stored credential and returns to role's login page
func (s *Service) Logout(ctx context.Context, role authctx.Role) error {
	err := s.teardown(ctx)
	s.nav.Navigate(LoginPage(role))
	return err
}

// SubmitReferral records the referral code for the signed-in user
func (s *Service) SubmitReferral(ctx context.Context, code string) (*backend.ReferralResponse, error) {
	code, err := s.validator.ValidateReferralCode(code)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	token, ok := s.manager.TokenFor(ctx, authctx.RoleUser)
	if !ok {
		return nil, errors.Wrap(apperrors.ErrUnauthorized, NoAuthTokenErr.Error())
	}

	resp, err := s.backend.SubmitReferral(ctx, token, code)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.SubmitReferral]")
	}
	s.nav.Navigate(navigation.RouteDashboard)
	return resp, nil
}

// SkipReferral leaves the referral page without a code
func (s *Service) SkipReferral() {
	s.nav.Navigate(navigation.RouteDashboard)
}

// Register creates an account. Nothing is stored; the user must verify their
// email and sign in.
func (s *Service) Register(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.ReferralCode = strings.TrimSpace(req.ReferralCode)
	if err := s.validator.ValidateRegistration(req); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	resp, err := s.backend.Register(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Register]")
	}
	s.nav.Navigate(navigation.RegistrationSuccessPage(req.Email))
	return resp, nil
}

// ForgotPassword requests a reset code and moves to the reset page
func (s *Service) ForgotPassword(ctx context.Context, email string) (*backend.MessageResponse, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	resp, err := s.backend.ForgotPassword(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ForgotPassword]")
	}
	s.nav.Navigate(navigation.ResetPasswordPage(email))
	return resp, nil
}

// ResetPassword sets a new password using the emailed code
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword, confirmPassword string) (*backend.MessageResponse, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.ValidatePasswordReset(email, otp, newPassword, confirmPassword); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}

	resp, err := s.backend.ResetPassword(ctx, backend.ResetPasswordRequest{
		Email:       email,
		OTP:         strings.TrimSpace(otp),
		NewPassword: newPassword,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ResetPassword]")
	}
	s.nav.Navigate(navigation.RouteUserLogin)
	return resp, nil
}

// VerifyEmail confirms an email address with the token from the verification link
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) (*backend.MessageResponse, error) {
	verificationToken = strings.TrimSpace(verificationToken)
	if verificationToken == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, "verification token is required")
	}
	resp, err := s.backend.VerifyEmail(ctx, verificationToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyEmail]")
	}
	return resp, nil
}

// ResendVerification sends a new verification link
func (s *Service) ResendVerification(ctx context.Context, email string) (*backend.MessageResponse, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidRequest, err.Error())
	}
	resp, err := s.backend.ResendVerification(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ResendVerification]")
	}
	return resp, nil
}

// LoginPage is where an unauthenticated visitor for role is sent
func LoginPage(role authctx.Role) string {
	if role == authctx.RoleAdmin {
		return navigation.RouteAdminLogin
	}
	return navigation.RouteUserLogin
}

func (s *Service) teardown(ctx context.Context) error {
	err := s.manager.ClearAll(ctx)
	if s.sessions != nil {
		if cerr := s.sessions.Clear(ctx); cerr != nil {
			err = apperrors.Join(err, cerr)
		}
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("session teardown incomplete")
	}
	return err
}

func requiresVerification(detail string) bool {
	detail = strings.ToLower(detail)
	return strings.Contains(detail, "verify your email") || strings.Contains(detail, "verification")
}
