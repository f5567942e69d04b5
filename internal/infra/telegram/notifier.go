package telegram

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain/ports/adapter"
)

var _ adapter.AdminNotifier = (*AdminNotifier)(nil)

// AdminNotifier fans a message out to every configured admin chat. The
// sender is bound after construction: usecases need the notifier before the
// bot exists, and the bot needs the usecases.
type AdminNotifier struct {
	adminIDs []int64
	log      *zerolog.Logger

	mu  sync.RWMutex
	bot adapter.TelegramBotAdapter
}

func NewAdminNotifier(adminIDs []int64, logger *zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{adminIDs: adminIDs, log: logger}
}

// Bind wires the actual transport in. Until then notifications are dropped
// with a warning.
func (n *AdminNotifier) Bind(bot adapter.TelegramBotAdapter) {
	n.mu.Lock()
	n.bot = bot
	n.mu.Unlock()
}

func (n *AdminNotifier) NotifyAdmins(ctx context.Context, text string) error {
	n.mu.RLock()
	bot := n.bot
	n.mu.RUnlock()
	if bot == nil {
		n.log.Warn().Msg("admin notification dropped: no bot bound")
		return nil
	}
	var lastErr error
	for _, id := range n.adminIDs {
		if err := bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: id, Text: text}); err != nil {
			n.log.Warn().Err(err).Int64("admin_id", id).Msg("admin notification failed")
			lastErr = err
		}
	}
	return lastErr
}
