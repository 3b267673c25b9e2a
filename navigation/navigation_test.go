package navigation_test

import (
	"testing"

	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/stretchr/testify/require"
)

func TestRoutes(t *testing.T) {
	require.Equal(t, "/referral?email=user%40example.com", navigation.ReferralPage("user@example.com"))
	require.Equal(t, "/reset-password?email=a%2Bb%40example.com", navigation.ResetPasswordPage("a+b@example.com"))
	require.Equal(t, "/check-user-status?oauth_success=true", navigation.CheckUserStatusPage())
	require.Equal(t, "/auth/error?error=AccessDenied", navigation.AuthErrorPage("AccessDenied"))
}

func TestRecorder(t *testing.T) {
	r := navigation.NewRecorder()
	require.Equal(t, "", r.Last())

	var nav navigation.Navigator = r
	nav.Navigate(navigation.RouteDashboard)
	nav.Navigate(navigation.RouteUserLogin)

	require.Equal(t, []string{navigation.RouteDashboard, navigation.RouteUserLogin}, r.Targets())
	require.Equal(t, navigation.RouteUserLogin, r.Last())
	require.Equal(t, navigation.RouteDashboard, <-r.C())

	var got string
	navigation.NavigatorFunc(func(target string) { got = target }).Navigate("/x")
	require.Equal(t, "/x", got)
}
