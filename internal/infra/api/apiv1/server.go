package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/infra/logging"
	"wellness-payments/internal/infra/metrics"
	"wellness-payments/internal/usecase"
)

// maxWebhookBody caps what we read from the provider.
const maxWebhookBody = 1 << 20

// Compile-time check
var _ ServerInterface = (*Server)(nil)

type errorBody struct {
	Error string `json:"error"`
}

type webhookAccepted struct {
	Success bool `json:"success"`
}

type PaymentView struct {
	RefCode string              `json:"ref_code"`
	Status  model.PaymentStatus `json:"status"`
	Type    model.PaymentType   `json:"payment_type"`
	PaidAt  *time.Time          `json:"paid_at,omitempty"`
}

type PaymentStatusResponse struct {
	Success bool        `json:"success"`
	Payment PaymentView `json:"payment"`
}

// Server implements ServerInterface on top of the payment use cases.
type Server struct {
	webhook  usecase.WebhookUseCase
	payments usecase.PaymentUseCase
	log      *zerolog.Logger
}

func NewServer(webhook usecase.WebhookUseCase, payments usecase.PaymentUseCase, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{webhook: webhook, payments: payments, log: &l}
}

func (s *Server) PostPaymentWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		metrics.ObserveWebhook("fail", "bad_json", time.Since(start))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid payload"})
		return
	}
	n, err := model.ParseNotification(body)
	if err != nil {
		log.Warn().Err(err).Msg("webhook body is not valid JSON")
		metrics.ObserveWebhook("fail", "bad_json", time.Since(start))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid payload"})
		return
	}

	out, err := s.webhook.Handle(r.Context(), n)
	if err != nil {
		status, reason, msg := webhookError(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("reason", reason).Msg("webhook failed")
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		metrics.ObserveWebhook("fail", reason, time.Since(start))
		writeJSON(w, status, errorBody{Error: msg})
		return
	}

	if fails := out.Report.Failures(); len(fails) > 0 {
		log.Warn().Int("failed_steps", len(fails)).Msg("payment recorded; provisioning incomplete")
	}
	metrics.ObserveWebhook("ok", "", time.Since(start))
	writeJSON(w, http.StatusOK, webhookAccepted{Success: true})
}

// webhookError maps use case errors onto the provider-facing contract.
func webhookError(err error) (status int, reason, msg string) {
	var pe *usecase.PersistenceError
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusForbidden, "invalid_signature", "Invalid signature"
	case errors.Is(err, domain.ErrInvalidPayload):
		return http.StatusBadRequest, "bad_json", "Invalid payload"
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, "not_found", "Payment not found"
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusServiceUnavailable, "locked", "Payment is being processed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, "timeout", "Timed out updating payment"
	case errors.As(err, &pe):
		return http.StatusInternalServerError, "persistence", "Failed to update payment"
	default:
		return http.StatusInternalServerError, "internal", "Internal error"
	}
}

func (s *Server) GetPaymentStatus(w http.ResponseWriter, r *http.Request, refCode string) {
	p, err := s.payments.GetStatus(r.Context(), refCode)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPaymentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Payment not found"})
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "ref_code is required"})
		return
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("payment status lookup failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal error"})
		return
	}

	writeJSON(w, http.StatusOK, PaymentStatusResponse{
		Success: true,
		Payment: PaymentView{RefCode: p.RefCode, Status: p.Status, Type: p.Type, PaidAt: p.PaidAt},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
