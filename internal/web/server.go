// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

// Package web serves the contactsd JSON API over chi.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/luan-services/contactsd/internal/auth"
	"github.com/luan-services/contactsd/internal/contacts"
	"github.com/luan-services/contactsd/internal/observability"
	"github.com/luan-services/contactsd/internal/ratelimit"
	"github.com/luan-services/contactsd/internal/validate"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server timeouts.
const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 15 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 60 * time.Second
)

// AuthService is the account API the handlers drive.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, username, email, password string) (auth.RegisterResult, error)
	Login(ctx context.Context, email, password string) (auth.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	RefreshTTL() time.Duration
}

// ContactService is the contact API the handlers drive.
type ContactService interface {
	List(ctx context.Context, ownerID ulid.ULID) ([]contacts.Contact, error)
	Create(ctx context.Context, ownerID ulid.ULID, f contacts.Fields) (contacts.Contact, error)
	Get(ctx context.Context, ownerID, id ulid.ULID) (contacts.Contact, error)
	Update(ctx context.Context, ownerID, id ulid.ULID, f contacts.Fields) (contacts.Contact, error)
	Delete(ctx context.Context, ownerID, id ulid.ULID) error
}

// Deps are the router's collaborators. Metrics and Logger are optional.
type Deps struct {
	Auth         AuthService
	Contacts     ContactService
	LoginLimiter ratelimit.Limiter
	Validator    *validate.Validator
	Metrics      *observability.Metrics
	Logger       *slog.Logger

	// Production marks the refresh cookie Secure.
	Production bool

	// TrustProxy derives the client address from proxy headers.
	TrustProxy bool
}

type handler struct {
	auth      AuthService
	contacts  ContactService
	validator *validate.Validator
	metrics   *observability.Metrics
	logger    *slog.Logger
	secure    bool
}

// NewRouter builds the API router.
func NewRouter(deps Deps) (http.Handler, error) {
	if deps.Auth == nil {
		return nil, oops.Code("WEB_INVALID").Errorf("auth service is required")
	}
	if deps.Contacts == nil {
		return nil, oops.Code("WEB_INVALID").Errorf("contact service is required")
	}
	if deps.LoginLimiter == nil {
		return nil, oops.Code("WEB_INVALID").Errorf("login rate limiter is required")
	}
	if deps.Validator == nil {
		deps.Validator = validate.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	h := &handler{
		auth:      deps.Auth,
		contacts:  deps.Contacts,
		validator: deps.Validator,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		secure:    deps.Production,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(instrument(h.logger, h.metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.With(RateLimit(deps.LoginLimiter, "login", h.metrics, h.logger)).Post("/login", h.login)
		r.With(RequireAuth(h.auth, h.logger)).Get("/current", h.current)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.Post("/verify", h.verifyEmail)
		r.Post("/resend-verification", h.resendVerification)
		r.Post("/forgot-password", h.forgotPassword)
		r.Get("/reset-password", h.verifyResetToken)
		r.Post("/reset-password", h.resetPassword)
	})

	r.Route("/api/contacts", func(r chi.Router) {
		// Inline so the guard runs after routing and metrics see {id}.
		guarded := r.With(RequireAuth(h.auth, h.logger))
		guarded.Get("/", h.listContacts)
		guarded.Post("/", h.createContact)
		guarded.Get("/{id}", h.getContact)
		guarded.Put("/{id}", h.updateContact)
		guarded.Delete("/{id}", h.deleteContact)
	})

	return r, nil
}

// Server runs the API router on its own listener.
type Server struct {
	addr       string
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server for handler on addr ("host:port").
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start begins serving. The returned channel receives a serve failure and
// is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}
	slog.Info("http server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
