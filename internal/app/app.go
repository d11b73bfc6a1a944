// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance), wires the plugins together, and owns the background
// scheduler.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/accounts/internal/apperror"
	"github.com/keyxmakerx/accounts/internal/cache"
	"github.com/keyxmakerx/accounts/internal/config"
	"github.com/keyxmakerx/accounts/internal/middleware"
	"github.com/keyxmakerx/accounts/internal/plugins/audit"
	"github.com/keyxmakerx/accounts/internal/plugins/auth"
	"github.com/keyxmakerx/accounts/internal/plugins/disposable"
	"github.com/keyxmakerx/accounts/internal/scheduler"
	"github.com/keyxmakerx/accounts/internal/validation"
)

// auditFlushTimeout bounds one scheduled audit write. The write outlives
// the scheduler's context so shutdown never cuts a batch in half.
const auditFlushTimeout = 5 * time.Second

// Scheduled task names, as they appear in logs.
const (
	taskDisposableDomains = "disposable-domains"
	taskLoginAuditFlush   = "login-audit-flush"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis is the Redis client backing sessions and the domain cache.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// AuthService is shared by the auth and admin plugins.
	AuthService auth.AuthService

	// AuditRepo persists and lists login attempts.
	AuditRepo audit.Repository

	// LoginAudit queues login attempts between flushes.
	LoginAudit *audit.Buffer

	// Domains answers disposable-domain lookups during registration.
	Domains *disposable.Cache

	// Scheduler runs the periodic domain reload and audit flush.
	Scheduler *scheduler.Scheduler

	// checks are the dependency probes behind /healthz.
	checks map[string]func(ctx context.Context) error
}

// New creates a new App instance with the given dependencies, builds every
// plugin component, and configures the Echo server with global middleware
// and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	e.Validator = validation.New()

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. Rate limiting and the login
	// audit trail both depend on it.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
		checks: map[string]func(ctx context.Context) error{
			"mariadb": db.PingContext,
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	if err := app.buildComponents(); err != nil {
		return nil, err
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = errorHandler

	return app, nil
}

// buildComponents constructs the plugins from leaves up and registers the
// background tasks.
func (a *App) buildComponents() error {
	store := cache.NewRedisCache(a.Redis)

	tokens, err := auth.NewTokenCodec(
		a.Config.Auth.AccessSecret,
		a.Config.Auth.RefreshSecret,
		a.Config.Auth.AccessTTL,
		a.Config.Auth.RefreshTTL,
	)
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	a.Domains = disposable.NewCache(
		store,
		disposable.NewHTTPSource(a.Config.Disposable.SourceURL, a.Config.Disposable.FetchTimeout),
		a.Config.Disposable.EntryTTL,
	)

	a.AuditRepo = audit.NewRepository(a.DB)
	a.LoginAudit = audit.NewBuffer(a.AuditRepo)

	a.AuthService = auth.NewAuthService(
		auth.NewUserRepository(a.DB),
		tokens,
		auth.NewSessionStore(store),
		a.Domains,
		a.LoginAudit,
		a.Config.Auth.SessionTTL,
	)

	a.Scheduler = scheduler.New()
	if err := a.Scheduler.Add(scheduler.Task{
		Name:       taskDisposableDomains,
		Interval:   a.Config.Disposable.ReloadInterval,
		RunAtStart: true,
		Run:        a.Domains.Reload,
	}); err != nil {
		return fmt.Errorf("scheduling %s: %w", taskDisposableDomains, err)
	}
	if err := a.Scheduler.Add(scheduler.Task{
		Name:     taskLoginAuditFlush,
		Interval: a.Config.Audit.FlushInterval,
		Run:      a.LoginAudit.FlushTask(auditFlushTimeout),
	}); err != nil {
		return fmt.Errorf("scheduling %s: %w", taskLoginAuditFlush, err)
	}

	return nil
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- allow browser front ends on other origins to call the API.
	if len(a.Config.AllowedOrigins) > 0 {
		a.Echo.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: a.Config.AllowedOrigins,
		}))
	}
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to JSON responses of the form
// {"error": ..., "message": ..., "fields": {...}}.
func errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := defaultErrorMessage(code)
	var fields map[string]string

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		fields = appErr.Fields

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	case errors.As(err, &echoErr):
		// Echo's built-in HTTP errors (e.g., 404 from router).
		code = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = defaultErrorMessage(code)
		}
	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	body := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
	}
	if len(fields) > 0 {
		body["fields"] = fields
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if err := c.JSON(code, body); err != nil {
		slog.Error("writing error response", slog.Any("error", err))
	}
}

// defaultErrorMessage returns a client-facing message for common HTTP status
// codes when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The requested resource does not exist."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// StartBackground launches the scheduled tasks. They run until Shutdown.
func (a *App) StartBackground(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting accounts server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}

// Shutdown drains HTTP traffic, stops the scheduler, and writes any login
// attempts still queued. ctx bounds the HTTP drain and the final flush.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Echo.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}

	a.Scheduler.Stop()

	if err := a.LoginAudit.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final audit flush: %w", err))
	}

	return errors.Join(errs...)
}
