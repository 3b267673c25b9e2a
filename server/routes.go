package server

import "net/http"

func (s *Server) initRoutes() {
	s.router.Use(s.RecoverMiddleware, s.LoggingMiddleware, s.NoStoreMiddleware)

	s.registerRoute(http.MethodGet, RouteCallback, s.OAuthCallbackHandler())
	s.registerRoute(http.MethodGet, RouteCheckUserStatus, s.CheckUserStatusHandler())
	s.registerRoute(http.MethodGet, RouteAuthError, s.AuthErrorHandler())

	s.registerRoute(http.MethodGet, RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		logError(r.Method, r.URL.Path, "not found")
		http.Error(w, "404 - Page Not Found", http.StatusNotFound)
	})
}

func (s *Server) registerRoute(method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.With(s.FrameSecurityMiddleware).Method(method, pattern, handler)
}
