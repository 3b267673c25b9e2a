package navigation

import "net/url"

// Frontend routes
const (
	RouteHome                 = "/"
	RouteDashboard            = "/dashboard"
	RouteReferral             = "/referral"
	RouteAirdrop              = "/airdrop"
	RouteUserLogin            = "/airdrop?mode=login"
	RouteAdminLogin           = "/admin"
	RouteAdminDashboard       = "/admin/dashboard"
	RouteCheckUserStatus      = "/check-user-status"
	RouteAuthError            = "/auth/error"
	RouteVerificationRequired = "/verification-required"
	RouteForgotPassword       = "/forgot-password"
	RouteResetPassword        = "/reset-password"
	RouteRegistrationSuccess  = "/registration-success"
)

// OAuthSuccessParam marks a navigation as the completion of an OAuth sign-in
const OAuthSuccessParam = "oauth_success"

// ReferralPage is the referral-code entry page carrying email for display
func ReferralPage(email string) string {
	return RouteReferral + "?email=" + url.QueryEscape(email)
}

// ResetPasswordPage is the reset page prefilled with email
func ResetPasswordPage(email string) string {
	return RouteResetPassword + "?email=" + url.QueryEscape(email)
}

// CheckUserStatusPage is where a completed OAuth sign-in lands
func CheckUserStatusPage() string {
	return RouteCheckUserStatus + "?" + OAuthSuccessParam + "=true"
}

// AuthErrorPage is the sign-in error page
func AuthErrorPage(code string) string {
	return RouteAuthError + "?error=" + url.QueryEscape(code)
}

// RegistrationSuccessPage tells a new user to check email for the verification link
func RegistrationSuccessPage(email string) string {
	return RouteRegistrationSuccess + "?email=" + url.QueryEscape(email)
}
