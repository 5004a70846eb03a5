package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"wellness-payments/internal/config"
	"wellness-payments/internal/infra/api/apiv1"
	"wellness-payments/internal/usecase"
)

// Server is the public HTTP surface: provider webhook, status polling, health and metrics.
type Server struct {
	srv *http.Server
	log *zerolog.Logger
}

// NewRouter builds the chi router with the shared middleware chain.
func NewRouter(cfg config.HTTPConfig, webhookUC usecase.WebhookUseCase, paymentUC usecase.PaymentUseCase, logger *zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(
		TraceID(logger),
		RequestLog(logger),
		Recover(logger),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(cfg.RequestTimeout))
		apiv1.RegisterAPIV1(r, apiv1.NewServer(webhookUC, paymentUC, logger), apiv1.RouteOptions{
			WebhookPath: cfg.WebhookPath,
		})
	})
	return r
}

func NewServer(cfg config.HTTPConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log: &l,
	}
}

// Start blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
