// Command authkitd serves the authentication API. Configuration comes
// from the environment (optionally a .env file); see envOrDefault calls
// below for the knobs and their defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	authkit "github.com/sorguskor/authkit"
	"github.com/sorguskor/authkit/httpapi"
	"github.com/sorguskor/authkit/internal/audit"
	"github.com/sorguskor/authkit/internal/rate"
	"github.com/sorguskor/authkit/observability"
	"github.com/sorguskor/authkit/store"
	"github.com/sorguskor/authkit/store/pgstore"
	"github.com/sorguskor/authkit/store/redisstore"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger(os.Stdout, envOrDefault("LOG_LEVEL", "info"))

	if err := run(logger); err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Warn("sentry init failed", slog.Any("error", err))
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := authkit.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(mustEnv("ACCESS_TOKEN_SECRET"))
	cfg.JWT.RefreshSecret = []byte(mustEnv("REFRESH_TOKEN_SECRET"))
	cfg.JWT.AccessTTL = envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15)
	cfg.JWT.RefreshTTL = envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168)
	cfg.Lockout.MaxFails = envIntOrDefault("LOGIN_MAX_FAILS", 5)
	cfg.Lockout.Window = envMinutesOrDefault("LOGIN_FAIL_WINDOW_MINUTES", 10)
	cfg.Lockout.LockDuration = envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15)
	cfg.Audit.Enabled = true

	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	users, cleanup, err := buildStore(ctx, redisClient)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := authkit.New().
		WithConfig(cfg).
		WithStore(users).
		WithAuditSink(audit.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	var limiter *rate.Limiter
	if redisClient != nil {
		limiter = rate.New(redisClient, rate.Config{
			Rules: map[string]rate.Rule{
				httpapi.RouteRegister: {Max: envIntOrDefault("RATE_REGISTER_MAX", 10), Window: time.Minute},
				httpapi.RouteLogin:    {Max: envIntOrDefault("RATE_LOGIN_MAX", 20), Window: time.Minute},
				httpapi.RouteRefresh:  {Max: envIntOrDefault("RATE_REFRESH_MAX", 60), Window: time.Minute},
			},
		})
	}

	api := httpapi.NewServer(engine, logger, limiter, httpapi.Config{
		CORSOrigin:   os.Getenv("CORS_ORIGIN"),
		CookieSecure: envOrDefault("COOKIE_SECURE", "true") == "true",
		CookieDomain: os.Getenv("COOKIE_DOMAIN"),
	})

	addr := ":" + envOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func buildStore(ctx context.Context, redisClient *redis.Client) (store.UserStore, func(), error) {
	backend := envOrDefault("STORE_BACKEND", "memory")
	switch backend {
	case "memory":
		return store.NewMemory(), func() {}, nil

	case "redis":
		if redisClient == nil {
			return nil, nil, errors.New("STORE_BACKEND=redis requires REDIS_ADDR")
		}
		return redisstore.New(redisClient, redisstore.Config{
			Prefix: envOrDefault("REDIS_KEY_PREFIX", "ak"),
		}), func() {}, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, mustEnv("DATABASE_URL"))
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		st := pgstore.New(pool, pgstore.Config{})
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", backend)
	}
}

func mustEnv(name string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		fmt.Fprintf(os.Stderr, "missing required env: %s\n", name)
		os.Exit(1)
	}
	return value
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}
