package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*MidtransVerifier)(nil)

// MidtransVerifier checks notification signatures against the merchant server key.
type MidtransVerifier struct {
	serverKey string
}

func NewMidtransVerifier(serverKey string) *MidtransVerifier {
	return &MidtransVerifier{serverKey: serverKey}
}

// Signature returns hex(SHA-512(order_id + status_code + gross_amount + server_key)).
// gross_amount must be the exact string the provider sent.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// Verify compares in constant time; hex case is ignored. An unsigned notification or an
// empty server key never verifies.
func (v *MidtransVerifier) Verify(n *model.Notification) bool {
	if n == nil || v.serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, string(n.GrossAmount), v.serverKey)
	got := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
