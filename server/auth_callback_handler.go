package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/airdrop-session/auth"
	"github.com/jrsteele09/airdrop-session/internal/errors"
	"github.com/jrsteele09/airdrop-session/navigation"
	"github.com/jrsteele09/airdrop-session/oauthflow"
	"github.com/jrsteele09/airdrop-session/server/authflowrepo"
	"github.com/jrsteele09/airdrop-session/session"
	"golang.org/x/oauth2"
)

// BeginAuth registers a new sign-in attempt and returns the provider URL the
// browser must open. returnURL is the app route the user asked for.
func (s *Server) BeginAuth(returnURL string) (string, error) {
	if returnURL == "" {
		returnURL = navigation.RouteDashboard
	}
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	if err := s.deps.Flows.Upsert(state, &authflowrepo.AuthFlowState{
		CodeVerifier: verifier,
		Nonce:        nonce,
		ReturnURL:    returnURL,
		CreatedAt:    s.nowTime(),
	}); err != nil {
		return "", fmt.Errorf("[Server BeginAuth] failed to store flow state: %w", err)
	}

	return s.deps.OAuth2.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	), nil
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")

		// Provider reported an error (user cancelled, consent denied)
		if errorParam := r.FormValue("error"); errorParam != "" {
			s.logger.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("provider returned an error")
			s.redirect(w, r, s.baseURL+navigation.RouteAirdrop+"?error="+errorParam)
			return
		}

		if code == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}
		if err := auth.ValidateState(state); err != nil {
			s.logger.Warn().Err(errors.Wrapf(errors.ErrInvalidState, "%v", err)).Msg("callback with malformed state")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		// Take removes the state, so a replayed callback fails here
		authState, err := s.deps.Flows.Take(state)
		if err != nil {
			s.logger.Warn().Err(err).Msg("callback with unknown state")
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		oauth2Token, err := s.deps.OAuth2.Exchange(r.Context(), code, oauth2.VerifierOption(authState.CodeVerifier))
		if err != nil {
			s.logger.Error().Err(err).Msg("token exchange failed")
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusBadGateway)
			return
		}

		identity, err := s.deps.Verifier.Verify(r.Context(), rawIDToken, authState.Nonce)
		if err != nil {
			s.logger.Warn().Err(err).Msg("ID token rejected")
			status := http.StatusUnauthorized
			if errors.Is(err, errors.ErrMissingIdentity) {
				status = http.StatusBadRequest
			}
			http.Error(w, "ID token verification failed", status)
			return
		}

		if !s.deps.Policy.Allow(r.Context(), identity.Email) {
			s.finish(Result{
				Target:   navigation.AuthErrorPage("AccessDenied"),
				Identity: identity,
				Err:      fmt.Errorf("[Server OAuthCallback] %s: %w", identity.Email, errors.ErrBanned),
			})
			s.redirect(w, r, s.baseURL+navigation.RouteAirdrop+"?error=AccessDenied")
			return
		}

		sess := session.FromOAuthToken(oauth2Token, s.nowTime(), s.expiry)
		if err := s.deps.Sessions.Save(r.Context(), sess); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist oauth session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		s.setIdentity(identity)

		s.redirect(w, r, s.baseURL+authState.ReturnURL)
	}
}

// CheckUserStatusHandler runs the account resolver for the signed-in identity
// and forwards the browser to the web app.
func (s *Server) CheckUserStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.currentIdentity()
		if !ok {
			s.appRedirect(w, r, navigation.RouteAirdrop)
			return
		}

		// A dropped request must not abandon the resolution; the resolver's own
		// deadline bounds it.
		out := s.deps.Resolver.Resolve(context.WithoutCancel(r.Context()), identity, r.URL.Query())
		switch {
		case out.Skipped:
			s.finish(Result{Target: navigation.RouteDashboard, Identity: identity})
			s.appRedirect(w, r, navigation.RouteDashboard)
		case out.Duplicate && out.Target != "":
			s.finish(Result{Target: out.Target, Identity: identity})
			s.appRedirect(w, r, out.Target)
		case out.Duplicate:
			w.WriteHeader(http.StatusAccepted)
			_, _ = fmt.Fprintln(w, "Sign-in is already being processed.")
		case out.Target == "":
			http.Error(w, "Sign-in abandoned", http.StatusServiceUnavailable)
		default:
			s.finish(Result{Target: out.Target, Identity: identity})
			s.appRedirect(w, r, out.Target)
		}
	}
}

func (s *Server) AuthErrorHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("error")
		if code == "" {
			code = "Unknown"
		}
		s.finish(Result{
			Target: navigation.AuthErrorPage(code),
			Err:    fmt.Errorf("[Server AuthError] %s: %w", code, errors.ErrForbidden),
		})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprintf(w, "Sign-in failed: %s\nYou can close this window.\n", code)
	}
}

// redirect applies the app's redirect policy to rawURL
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, rawURL string) {
	http.Redirect(w, r, oauthflow.RedirectTarget(rawURL, s.baseURL), http.StatusSeeOther)
}
