package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"wellness-payments/internal/config"
	"wellness-payments/internal/domain/model"
	"wellness-payments/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*OpsNotifier)(nil)

// sender is the part of tgbotapi.BotAPI we use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// OpsNotifier posts provisioning alerts to an operations chat.
type OpsNotifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewOpsNotifier(cfg *config.OpsConfig, logger *zerolog.Logger) (*OpsNotifier, error) {
	if cfg == nil || cfg.TelegramToken == "" {
		return nil, errors.New("ops telegram token is empty")
	}
	if cfg.TelegramChatID == 0 {
		return nil, errors.New("ops telegram chat id is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "OpsNotifier").Logger()
	return &OpsNotifier{bot: bot, chatID: cfg.TelegramChatID, log: &l}, nil
}

func (n *OpsNotifier) NotifyProvisioningFailure(ctx context.Context, f *model.ProvisioningFailure) error {
	if f == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatFailure(f))
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Str("ref_code", f.RefCode).Msg("send ops alert failed")
		return err
	}
	return nil
}

// FormatFailure renders the alert text.
func FormatFailure(f *model.ProvisioningFailure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provisioning failed: %s\n", f.Step)
	fmt.Fprintf(&b, "ref_code: %s\n", f.RefCode)
	fmt.Fprintf(&b, "payment_id: %s\n", f.PaymentID)
	fmt.Fprintf(&b, "attempts: %d\n", f.Attempts)
	if !f.Retryable {
		b.WriteString("needs manual action\n")
	}
	fmt.Fprintf(&b, "error: %s", f.Error)
	return b.String()
}
