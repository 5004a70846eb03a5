// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"

	"wellness-payments/internal/domain/model"
)

// OpsNotifier pages a human about problems retries cannot fix on their own.
type OpsNotifier interface {
	NotifyProvisioningFailure(ctx context.Context, f *model.ProvisioningFailure) error
}
