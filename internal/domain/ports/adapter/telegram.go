package adapter

import "context"

// SendMessageParams is everything the bot needs to deliver one message.
type SendMessageParams struct {
	ChatID    int64
	Text      string
	ParseMode string
	// ReplyMarkup is an optional provider-specific keyboard payload.
	ReplyMarkup interface{}
}

// TelegramBotAdapter abstracts the bot transport so usecases can notify
// admins and users without importing the bot API.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
}

// AdminNotifier is the narrow fan-out interface fulfillment and cancellation
// use to alert reviewers. Best-effort only.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}
