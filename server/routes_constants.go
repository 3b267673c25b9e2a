package server

// Route path constants
const (
	RouteCallback        = "/auth/callback"
	RouteCheckUserStatus = "/check-user-status"
	RouteAuthError       = "/auth/error"
	RouteHealth          = "/healthz"
)
