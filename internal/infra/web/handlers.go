package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/infra/logging"
	"wellness-payments/internal/infra/metrics"
	red "wellness-payments/internal/infra/redis"
)

const (
	loginAttempts = 5
	loginWindow   = time.Minute
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, red.AdminLoginKey(clientIP(r)), loginAttempts, loginWindow)
		if err != nil {
			// Fail open when Redis is unavailable.
			log.Warn().Err(err).Msg("login rate limiter unavailable")
		} else if !ok {
			metrics.IncAdminRequest("login", "throttled")
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.auth == nil || s.creds.Username == "" || s.creds.Password == "" || !s.checkCredentials(req) {
		metrics.IncAdminRequest("login", "unauthorized")
		log.Warn().Str("username", req.Username).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.auth.Mint(w, req.Username)
	if err != nil {
		metrics.IncAdminRequest("login", "error")
		log.Error().Err(err).Msg("mint admin session failed")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	metrics.IncAdminRequest("login", "ok")
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: s.auth.now().Add(s.auth.cfg.TTL)})
}

func (s *Server) checkCredentials(req loginRequest) bool {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.creds.Password)) == 1
	return userOK && passOK
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.Clear(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

type failureView struct {
	ID         string                 `json:"id"`
	PaymentID  string                 `json:"payment_id"`
	RefCode    string                 `json:"ref_code"`
	Step       model.ProvisioningStep `json:"step"`
	Error      string                 `json:"error"`
	Retryable  bool                   `json:"retryable"`
	Attempts   int                    `json:"attempts"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
}

func toFailureView(f *model.ProvisioningFailure) failureView {
	return failureView{
		ID:         f.ID,
		PaymentID:  f.PaymentID,
		RefCode:    f.RefCode,
		Step:       f.Step,
		Error:      f.Error,
		Retryable:  f.Retryable,
		Attempts:   f.Attempts,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
		ResolvedAt: f.ResolvedAt,
	}
}

// handleListFailures serves GET /admin/v1/provisioning-failures?retryable=true&limit=N.
func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	retryable, _ := strconv.ParseBool(q.Get("retryable"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := s.reconcileUC.ListFailures(r.Context(), retryable, limit)
	if err != nil {
		metrics.IncAdminRequest("list_failures", "error")
		logging.With(r.Context(), s.log).Error().Err(err).Msg("list provisioning failures")
		writeError(w, http.StatusInternalServerError, "failed to list provisioning failures")
		return
	}
	items := make([]failureView, 0, len(list))
	for _, f := range list {
		items = append(items, toFailureView(f))
	}
	metrics.IncAdminRequest("list_failures", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type stepView struct {
	Step   model.ProvisioningStep `json:"step"`
	Status model.OutcomeStatus    `json:"status"`
	Error  string                 `json:"error,omitempty"`
}

type retryResponse struct {
	OK    bool       `json:"ok"`
	Steps []stepView `json:"steps"`
}

func toRetryResponse(report model.ProvisioningReport) retryResponse {
	out := retryResponse{OK: report.OK(), Steps: make([]stepView, 0, len(report))}
	for _, o := range report {
		v := stepView{Step: o.Step, Status: o.Status}
		if o.Err != nil {
			v.Error = o.Err.Err.Error()
		}
		out.Steps = append(out.Steps, v)
	}
	return out
}

func (s *Server) handleRetryFailure(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.reconcileUC.RetryFailure(r.Context(), id)
	if err != nil {
		s.writeUseCaseError(w, r, "retry_failure", err)
		return
	}
	metrics.IncAdminRequest("retry_failure", "ok")
	writeJSON(w, http.StatusOK, toRetryResponse(report))
}

func (s *Server) handleReprovision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payment_id")
	report, err := s.reconcileUC.RetryPayment(r.Context(), id)
	if err != nil {
		s.writeUseCaseError(w, r, "reprovision", err)
		return
	}
	metrics.IncAdminRequest("reprovision", "ok")
	writeJSON(w, http.StatusOK, toRetryResponse(report))
}

type eventView struct {
	ID                string              `json:"id"`
	TransactionStatus string              `json:"transaction_status"`
	DerivedStatus     model.PaymentStatus `json:"derived_status"`
	Result            model.WebhookResult `json:"result"`
	Error             string              `json:"error,omitempty"`
	Payload           json.RawMessage     `json:"payload,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

func (s *Server) handlePaymentEvents(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref_code")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	p, err := s.paymentUC.GetStatus(r.Context(), ref)
	if err != nil {
		s.writeUseCaseError(w, r, "payment_events", err)
		return
	}
	events, err := s.paymentUC.Events(r.Context(), ref, limit)
	if err != nil {
		s.writeUseCaseError(w, r, "payment_events", err)
		return
	}
	items := make([]eventView, 0, len(events))
	for _, e := range events {
		v := eventView{
			ID:                e.ID,
			TransactionStatus: e.TransactionStatus,
			DerivedStatus:     e.DerivedStatus,
			Result:            e.Result,
			Error:             e.Error,
			CreatedAt:         e.CreatedAt,
		}
		if json.Valid(e.Payload) {
			v.Payload = e.Payload
		}
		items = append(items, v)
	}
	metrics.IncAdminRequest("payment_events", "ok")
	writeJSON(w, http.StatusOK, map[string]any{
		"payment": map[string]any{
			"id":       p.ID,
			"ref_code": p.RefCode,
			"status":   p.Status,
			"type":     p.Type,
			"paid_at":  p.PaidAt,
		},
		"events": items,
	})
}

func (s *Server) handleReconcilePending(w http.ResponseWriter, r *http.Request) {
	sum, err := s.reconcileUC.ReconcilePending(r.Context(), s.pendingAfter, s.batchSize)
	if err != nil {
		s.writeUseCaseError(w, r, "reconcile_pending", err)
		return
	}
	metrics.IncAdminRequest("reconcile_pending", "ok")
	writeJSON(w, http.StatusOK, map[string]int{
		"checked": sum.Checked,
		"updated": sum.Updated,
		"missing": sum.Missing,
		"errors":  sum.Errors,
	})
}

func (s *Server) writeUseCaseError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrFailureNotFound),
		errors.Is(err, domain.ErrNotFound):
		metrics.IncAdminRequest(action, "not_found")
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncAdminRequest(action, "invalid")
		writeError(w, http.StatusConflict, err.Error())
	default:
		metrics.IncAdminRequest(action, "error")
		logging.With(r.Context(), s.log).Error().Err(err).Str("action", action).Msg("admin action failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
