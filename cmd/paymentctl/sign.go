package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wellness-payments/internal/infra/payment"
)

func signCmd() *cobra.Command {
	var (
		orderID     string
		statusCode  string
		grossAmount string
		txStatus    string
		fraudStatus string
		serverKey   string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a signed Midtrans notification body for local webhook testing",
		Long: `Builds a notification the webhook accepts and prints it as JSON.

Examples:
  paymentctl sign --order-id SUB-123 --gross-amount 150000.00 --status settlement --server-key SB-Mid-server-xxx
  paymentctl sign --order-id SUB-123 --gross-amount 150000.00 | curl -d @- localhost:8080/api/v1/payments/webhook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == "" || grossAmount == "" {
				return errors.New("--order-id and --gross-amount are required")
			}
			if serverKey == "" {
				serverKey = os.Getenv("MIDTRANS_SERVER_KEY")
			}
			if serverKey == "" {
				return errors.New("--server-key or MIDTRANS_SERVER_KEY is required")
			}
			body := map[string]any{
				"order_id":           orderID,
				"status_code":        statusCode,
				"gross_amount":       json.Number(grossAmount),
				"transaction_status": txStatus,
				"signature_key":      payment.Signature(orderID, statusCode, grossAmount, serverKey),
			}
			if fraudStatus != "" {
				body["fraud_status"] = fraudStatus
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(body); err != nil {
				return fmt.Errorf("encode notification: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orderID, "order-id", "", "payment ref_code")
	cmd.Flags().StringVar(&statusCode, "status-code", "200", "provider status_code")
	cmd.Flags().StringVar(&grossAmount, "gross-amount", "", "amount exactly as the provider formats it, e.g. 150000.00")
	cmd.Flags().StringVar(&txStatus, "status", "settlement", "transaction_status")
	cmd.Flags().StringVar(&fraudStatus, "fraud", "", "fraud_status (accept|challenge|deny)")
	cmd.Flags().StringVar(&serverKey, "server-key", "", "Midtrans server key (defaults to $MIDTRANS_SERVER_KEY)")
	return cmd
}
