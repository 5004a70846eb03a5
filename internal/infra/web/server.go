package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"wellness-payments/internal/infra/api"
	"wellness-payments/internal/infra/metrics"
	"wellness-payments/internal/usecase"
)

// LoginLimiter throttles login attempts per client.
type LoginLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Credentials struct {
	Username string
	Password string
}

// Server is the operator API: inspect and retry provisioning failures, read webhook history.
type Server struct {
	reconcileUC usecase.ReconcileUseCase
	paymentUC   usecase.PaymentUseCase
	creds       Credentials
	auth        *AuthManager
	limiter     LoginLimiter
	log         *zerolog.Logger

	pendingAfter time.Duration
	batchSize    int
}

func NewServer(
	reconcileUC usecase.ReconcileUseCase,
	paymentUC usecase.PaymentUseCase,
	creds Credentials,
	auth *AuthManager,
	limiter LoginLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "admin").Logger()
	return &Server{
		reconcileUC:  reconcileUC,
		paymentUC:    paymentUC,
		creds:        creds,
		auth:         auth,
		limiter:      limiter,
		log:          &l,
		pendingAfter: 30 * time.Minute,
		batchSize:    50,
	}
}

// WithReconcileDefaults sets the window used by the manual reconcile trigger.
func (s *Server) WithReconcileDefaults(pendingAfter time.Duration, batchSize int) *Server {
	if pendingAfter > 0 {
		s.pendingAfter = pendingAfter
	}
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	return s
}

// Routes returns the admin router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		api.TraceID(s.log),
		api.RequestLog(s.log),
		api.Recover(s.log),
	)

	r.Post("/admin/v1/login", s.handleLogin)
	r.Post("/admin/v1/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/admin/v1/provisioning-failures", s.handleListFailures)
		r.Post("/admin/v1/provisioning-failures/{id}/retry", s.handleRetryFailure)
		r.Post("/admin/v1/payments/{payment_id}/reprovision", s.handleReprovision)
		r.Get("/admin/v1/payments/{ref_code}/events", s.handlePaymentEvents)
		r.Post("/admin/v1/reconcile/pending", s.handleReconcilePending)
	})
	return r
}

// authMiddleware accepts a session cookie or a bearer JWT minted by /login.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			metrics.IncAdminRequest("auth", "unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			metrics.IncAdminRequest("auth", "unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.log.Debug().Str("subject", claims.Subject).Str("path", r.URL.Path).Msg("admin request")
		next.ServeHTTP(w, r)
	})
}

// HTTPServer runs the admin router on its own listener.
type HTTPServer struct {
	srv *http.Server
	log *zerolog.Logger
}

func NewHTTPServer(addr string, s *Server) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           s.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: s.log,
	}
}

func (h *HTTPServer) Start() error {
	h.log.Info().Str("addr", h.srv.Addr).Msg("admin API listening")
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
