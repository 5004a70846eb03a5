package model

import (
	"encoding/json"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // created at checkout; awaiting provider notification
	PaymentStatusPaid    PaymentStatus = "paid"    // captured or settled, fraud check clean
	PaymentStatusFailed  PaymentStatus = "failed"  // cancelled, denied or expired at provider
)

// IsTerminal reports whether the status is final from the reconciler's point of view.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

type PaymentType string

const (
	PaymentTypeSubscription PaymentType = "subscription"
	PaymentTypeBooking      PaymentType = "booking"
)

// Metadata keys written at checkout time.
const (
	MetaPlanID         = "plan_id"
	MetaSessionID      = "session_id"
	MetaBookingID      = "booking_id"
	MetaProfessionalID = "professional_id"
)

// Payment records a checkout attempt and its reconciliation state.
type Payment struct {
	ID               string          // UUID
	RefCode          string          // merchant reference shared with the provider (unique, immutable)
	UserID           string          // UUID of the paying user
	Amount           int64           // smallest currency unit
	Currency         string          // e.g. "IDR"
	Type             PaymentType     // subscription | booking
	Status           PaymentStatus   // see constants above
	Metadata         Metadata        // type-specific identifiers set at checkout (JSONB)
	ProviderResponse json.RawMessage // last raw webhook payload, verbatim
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}

// Metadata is the opaque checkout payload. Values are read as strings; anything else is ignored.
type Metadata map[string]any

// String returns a trimmed string value for key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// DerivePaymentStatus maps provider transaction and fraud codes onto the canonical status.
// The first matching rule wins.
func DerivePaymentStatus(transactionStatus, fraudStatus string) PaymentStatus {
	tx := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))

	switch tx {
	case "capture", "settlement":
		if fraud == "" || fraud == "accept" {
			return PaymentStatusPaid
		}
	}
	switch tx {
	case "cancel", "deny", "expire":
		return PaymentStatusFailed
	}
	return PaymentStatusPending
}

// NextPaymentStatus resolves the status to persist given the stored one and the derived one.
// Terminal states never fall back to pending and paid is absorbing.
func NextPaymentStatus(current, derived PaymentStatus) PaymentStatus {
	switch {
	case current == PaymentStatusPaid:
		return PaymentStatusPaid
	case derived == PaymentStatusPending && current.IsTerminal():
		return current
	default:
		return derived
	}
}

// Transition describes the effect of one notification on one payment.
type Transition struct {
	Payment  *Payment
	Previous PaymentStatus
	Current  PaymentStatus
	Derived  PaymentStatus
}

// BecamePaid is true only for the delivery that moved the payment into paid.
func (t Transition) BecamePaid() bool {
	return t.Previous != PaymentStatusPaid && t.Current == PaymentStatusPaid
}

// Changed reports whether the persisted status differs from the previous one.
func (t Transition) Changed() bool { return t.Previous != t.Current }
