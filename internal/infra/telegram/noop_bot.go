package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter implements adapter.TelegramBotAdapter for local/dev runs
// without a bot token. It logs messages instead of sending them.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	b.log.Info().Int64("chat_id", params.ChatID).Str("text", params.Text).Msg("noop telegram send")
	return nil
}
