// Package httpapi exposes the authentication engine over HTTP. Refresh
// tokens travel in an httpOnly cookie scoped to the auth routes; a
// readable csrf cookie plus the X-CSRF-Token header protect the
// cookie-authenticated operations.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	authkit "github.com/sorguskor/authkit"
	"github.com/sorguskor/authkit/internal/rate"
	"github.com/sorguskor/authkit/middleware"
	"github.com/sorguskor/authkit/observability"
)

const (
	basePath          = "/api/auth"
	refreshCookieName = "refresh_token"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"

	maxJSONBodyBytes = 1 << 20
)

// Routes throttled by the rate limiter.
const (
	RouteRegister = "register"
	RouteLogin    = "login"
	RouteRefresh  = "refresh"
)

// Config tunes the transport layer.
type Config struct {
	// CORSOrigin is the single allowed origin; empty disables CORS
	// headers entirely.
	CORSOrigin string
	// CookieSecure marks auth cookies Secure. Leave false only for local
	// development over plain HTTP.
	CookieSecure bool
	// CookieDomain scopes auth cookies; empty means host-only.
	CookieDomain string
}

// Server wires engine operations to routes under /api/auth.
type Server struct {
	engine  *authkit.Engine
	logger  *slog.Logger
	limiter *rate.Limiter
	config  Config
}

// NewServer builds the transport. limiter may be nil, which disables
// request throttling.
func NewServer(engine *authkit.Engine, logger *slog.Logger, limiter *rate.Limiter, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		logger:  logger,
		limiter: limiter,
		config:  cfg,
	}
}

// Handler returns the fully assembled route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	guard := middleware.Guard(s.engine)

	mux.Handle("POST "+basePath+"/register", s.throttled(RouteRegister, http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST "+basePath+"/login", s.throttled(RouteLogin, http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST "+basePath+"/refresh", s.throttled(RouteRefresh, s.csrfChecked(http.HandlerFunc(s.handleRefresh))))
	mux.Handle("POST "+basePath+"/logout", guard(s.csrfChecked(http.HandlerFunc(s.handleLogout))))
	mux.Handle("GET "+basePath+"/me", guard(http.HandlerFunc(s.handleMe)))

	var h http.Handler = mux
	h = s.cors(h)
	h = observability.RequestLogging(s.logger, h)
	h = observability.Recover(s.logger, h)
	return h
}

// throttled applies the per-IP budget for the route. Limiter outages fail
// open: losing Redis must not take login down with it.
func (s *Server) throttled(route string, next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)
		if err := s.limiter.Allow(r.Context(), route, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				s.engine.Metrics().Inc(authkit.MetricRateLimitHit)
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			s.logger.Warn("rate limiter unavailable", slog.String("route", route), slog.Any("error", err))
		}
		next.ServeHTTP(w, r)
	})
}

// csrfChecked enforces the double-submit pair on cookie-authenticated
// mutations.
func (s *Server) csrfChecked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookieValue := ""
		if c, err := r.Cookie(csrfCookieName); err == nil {
			cookieValue = c.Value
		}
		ctx := authkit.WithClientIP(r.Context(), observability.ClientIP(r))
		if err := s.engine.ValidateCsrf(ctx, r.Header.Get(csrfHeaderName), cookieValue); err != nil {
			writeError(w, http.StatusForbidden, "csrf token mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	if s.config.CORSOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+csrfHeaderName)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setSessionCookies installs the refresh cookie (httpOnly, scoped to the
// auth routes) and the readable csrf cookie with matching lifetime.
func (s *Server) setSessionCookies(w http.ResponseWriter, refreshToken, csrfValue string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     basePath,
		Domain:   s.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    csrfValue,
		Path:     "/",
		Domain:   s.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     basePath,
		Domain:   s.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		Domain:   s.config.CookieDomain,
		MaxAge:   -1,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
