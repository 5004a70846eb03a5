package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs alerts instead of sending them.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) NotifyProvisioningFailure(ctx context.Context, f *model.ProvisioningFailure) error {
	n.log.Warn().
		Str("ref_code", f.RefCode).
		Str("step", string(f.Step)).
		Int("attempts", f.Attempts).
		Msg(f.Error)
	return nil
}
