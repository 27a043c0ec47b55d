package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	authkit "github.com/sorguskor/authkit"
	"github.com/sorguskor/authkit/middleware"
	"github.com/sorguskor/authkit/observability"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	CsrfToken   string `json:"csrf_token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	ctx := authkit.WithClientIP(r.Context(), observability.ClientIP(r))
	_, pair, err := s.engine.Register(ctx, body.Email, body.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.respondWithSession(w, http.StatusCreated, pair)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	ctx := authkit.WithClientIP(r.Context(), observability.ClientIP(r))
	pair, err := s.engine.Login(ctx, body.Email, body.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.respondWithSession(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if c, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = c.Value
	}
	if refreshToken == "" {
		// Non-browser clients may carry the token in the body instead.
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		var body refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			refreshToken = strings.TrimSpace(body.RefreshToken)
		}
	}
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := authkit.WithClientIP(r.Context(), observability.ClientIP(r))
	pair, err := s.engine.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, authkit.ErrUnauthorized) {
			// The presented token is dead (rotated away, reused, or
			// revoked). Expire the cookies so browsers stop replaying it.
			s.clearSessionCookies(w)
		}
		s.writeAuthError(w, err)
		return
	}

	s.respondWithSession(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := authkit.WithClientIP(r.Context(), observability.ClientIP(r))
	if err := s.engine.Logout(ctx, identity.UserID); err != nil {
		s.writeAuthError(w, err)
		return
	}

	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": identity.UserID,
		"email":   identity.Email,
	})
}

// respondWithSession sets both cookies and returns the access token plus
// the csrf header value in the body.
func (s *Server) respondWithSession(w http.ResponseWriter, status int, pair authkit.TokenPair) {
	csrfPair, err := s.engine.IssueCsrfPair()
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.setSessionCookies(w, pair.RefreshToken, csrfPair.CookieValue, pair.RefreshTTL)
	writeJSON(w, status, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(pair.AccessTTL.Seconds()),
		CsrfToken:   csrfPair.HeaderValue,
	})
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body credentialsRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return credentialsRequest{}, false
	}

	body.Email = strings.TrimSpace(body.Email)
	body.Password = strings.TrimSpace(body.Password)
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return credentialsRequest{}, false
	}
	return body, true
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var locked *authkit.AccountLockedError
	switch {
	case errors.Is(err, authkit.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, authkit.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.As(err, &locked):
		minutes := locked.RemainingMinutes(time.Now())
		w.Header().Set("Retry-After", strconv.Itoa(minutes*60))
		writeError(w, http.StatusTooManyRequests, "account temporarily locked")
	case errors.Is(err, authkit.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, authkit.ErrCsrfMismatch):
		writeError(w, http.StatusForbidden, "csrf token mismatch")
	case errors.Is(err, authkit.ErrStoreUnavailable):
		sentry.CaptureException(err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
