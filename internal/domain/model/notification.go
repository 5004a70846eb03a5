package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Notification is an inbound provider webhook after decoding.
type Notification struct {
	OrderID           string       `json:"order_id"`
	StatusCode        string       `json:"status_code"`
	GrossAmount       AmountString `json:"gross_amount"`
	SignatureKey      string       `json:"signature_key"`
	TransactionStatus string       `json:"transaction_status"`
	FraudStatus       string       `json:"fraud_status"`

	// Fallback fields used by the simulated-payment affordance.
	RefCode string `json:"ref_code"`
	Status  string `json:"status"`

	Raw json.RawMessage `json:"-"`
}

// ParseNotification decodes a webhook body and keeps the raw bytes for audit.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	n.Raw = append(json.RawMessage(nil), body...)
	return &n, nil
}

// Reference returns the correlation key, preferring the provider's order_id.
func (n *Notification) Reference() string {
	if n.OrderID != "" {
		return n.OrderID
	}
	return n.RefCode
}

// Signed reports whether the provider attached a signature.
func (n *Notification) Signed() bool { return n.SignatureKey != "" }

// Simulated reports whether the body uses the simplified {ref_code, status:"paid"} shape.
func (n *Notification) Simulated() bool {
	return n.OrderID == "" && n.RefCode != "" && strings.EqualFold(n.Status, "paid") && !n.Signed()
}

// AmountString keeps gross_amount exactly as the provider formatted it. A JSON string is used
// verbatim; a bare number literal is kept as its literal text.
type AmountString string

func (a *AmountString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*a = AmountString(b)
	return nil
}
