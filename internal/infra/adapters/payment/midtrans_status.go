package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"wellness-payments/internal/domain"
	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentStatusProvider = (*MidtransStatusClient)(nil)

// transactionChecker is the subset of the Midtrans core API we use.
type transactionChecker interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransStatusClient fetches transaction state from the Midtrans core API.
type MidtransStatusClient struct {
	api transactionChecker
}

func NewMidtransStatusClient(serverKey string, production bool) *MidtransStatusClient {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(serverKey, env)
	return &MidtransStatusClient{api: &c}
}

func (c *MidtransStatusClient) Name() string { return "midtrans" }

// TransactionStatus returns domain.ErrNotFound when Midtrans has no transaction for refCode.
func (c *MidtransStatusClient) TransactionStatus(ctx context.Context, refCode string) (*adapter.ProviderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, merr := c.api.CheckTransaction(refCode)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("midtrans check transaction: %s", merr.GetMessage())
	}
	if res == nil {
		return nil, errors.New("midtrans check transaction: empty response")
	}
	if res.StatusCode == "404" {
		return nil, domain.ErrNotFound
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode midtrans response: %w", err)
	}
	return &adapter.ProviderStatus{
		OrderID:           res.OrderID,
		StatusCode:        res.StatusCode,
		GrossAmount:       res.GrossAmount,
		TransactionStatus: res.TransactionStatus,
		FraudStatus:       res.FraudStatus,
		Raw:               raw,
	}, nil
}
