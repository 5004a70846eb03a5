package model

import (
	"fmt"
	"time"
)

// ProvisioningStep names one side effect run after a payment becomes paid.
type ProvisioningStep string

const (
	StepSubscriptionMetadata ProvisioningStep = "subscription.metadata"
	StepSubscriptionActivate ProvisioningStep = "subscription.activate"
	StepChatPremium          ProvisioningStep = "chat_usage.premium"
	StepBookingMetadata      ProvisioningStep = "booking.metadata"
	StepBookingLoad          ProvisioningStep = "booking.load"
	StepBookingMarkPaid      ProvisioningStep = "booking.mark_paid"
	StepChatChannel          ProvisioningStep = "chat_channel.upsert"
	StepUnknownType          ProvisioningStep = "payment.type"
)

type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// ProvisioningError is a failed side effect. The payment itself is already recorded when
// one of these is produced.
type ProvisioningError struct {
	Step      ProvisioningStep
	PaymentID string
	RefCode   string
	Retryable bool // false when retrying cannot help (bad metadata, ownership mismatch)
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s for payment %s: %v", e.Step, e.RefCode, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ProvisioningOutcome is the result of one step.
type ProvisioningOutcome struct {
	Step   ProvisioningStep
	Status OutcomeStatus
	Err    *ProvisioningError
}

// ProvisioningReport collects the outcomes of one dispatch, in execution order.
type ProvisioningReport []ProvisioningOutcome

// Failures returns the failed outcomes' errors.
func (r ProvisioningReport) Failures() []*ProvisioningError {
	var out []*ProvisioningError
	for _, o := range r {
		if o.Status == OutcomeFailed && o.Err != nil {
			out = append(out, o.Err)
		}
	}
	return out
}

// OK reports whether no step failed.
func (r ProvisioningReport) OK() bool { return len(r.Failures()) == 0 }

// Outcome returns the outcome recorded for step, if any.
func (r ProvisioningReport) Outcome(step ProvisioningStep) (ProvisioningOutcome, bool) {
	for _, o := range r {
		if o.Step == step {
			return o, true
		}
	}
	return ProvisioningOutcome{}, false
}

// ProvisioningFailure is the persisted dead-letter row for a failed step.
type ProvisioningFailure struct {
	ID         string // ULID
	PaymentID  string
	RefCode    string
	Step       ProvisioningStep
	Error      string
	Retryable  bool
	Attempts   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// WebhookResult is the processing state of a recorded webhook delivery.
type WebhookResult string

const (
	WebhookReceived     WebhookResult = "received"
	WebhookHandled      WebhookResult = "handled"
	WebhookHandleFailed WebhookResult = "handle_failed"
)

// WebhookEvent is the audit record of one delivery that resolved to a known payment.
type WebhookEvent struct {
	ID                string // ULID
	PaymentID         string
	RefCode           string
	TransactionStatus string
	DerivedStatus     PaymentStatus
	Payload           []byte
	Result            WebhookResult
	Error             string
	CreatedAt         time.Time
}
