package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/config"
	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/infra/metrics"
	red "bookstore-payments/internal/infra/redis"
	"bookstore-payments/internal/usecase"
)

const (
	// sessionTTL bounds how long a chat stays bound to a purchase; after that
	// the buyer re-taps the deep link.
	sessionTTL = 48 * time.Hour

	maxReceiptBytes = 10 << 20
)

var _ adapter.TelegramBotAdapter = (*Bot)(nil)

// Bot is the Telegram side of the purchase workflow: deep-link attachment,
// receipt intake, and the admin approve/reject keyboard. It polls with a
// small worker pool and delegates every decision to the purchase use case.
type Bot struct {
	bot       *tgbotapi.BotAPI
	cfg       *config.BotConfig
	purchases usecase.PurchaseUseCase
	receipts  adapter.ReceiptStore
	sessions  red.RedisClient
	limiter   *red.RateLimiter

	instructions string
	adminIDs     map[int64]struct{}
	workers      int

	cancelPolling context.CancelFunc
	log           *zerolog.Logger
}

func NewBot(
	cfg *config.BotConfig,
	purchases usecase.PurchaseUseCase,
	receipts adapter.ReceiptStore,
	sessions red.RedisClient,
	limiter *red.RateLimiter,
	instructions string,
	logger *zerolog.Logger,
) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if purchases == nil {
		return nil, errors.New("purchase use case is nil")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	adminMap := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}

	return &Bot{
		bot:          api,
		cfg:          cfg,
		purchases:    purchases,
		receipts:     receipts,
		sessions:     sessions,
		limiter:      limiter,
		instructions: instructions,
		adminIDs:     adminMap,
		workers:      workers,
		log:          logger,
	}, nil
}

// StartPolling runs until ctx is cancelled, fanning updates out to workers.
func (b *Bot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					if err := b.handleUpdate(ctx, up); err != nil {
						b.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	pump(ctx, updates, updateChan)

	b.bot.StopReceivingUpdates()
	close(updateChan)
	wg.Wait()
	return ctx.Err()
}

// pump forwards updates into the worker queue until ctx is cancelled. The
// send is guarded too: a full queue must not park the dispatcher past
// shutdown.
func pump(ctx context.Context, in <-chan tgbotapi.Update, out chan<- tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-in:
			select {
			case out <- up:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

// SendMessage implements the outbound adapter port.
func (b *Bot) SendMessage(ctx context.Context, params adapter.SendMessageParams) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(params.ChatID, params.Text)
	if params.ParseMode != "" {
		msg.ParseMode = params.ParseMode
	}
	if params.ReplyMarkup != nil {
		msg.ReplyMarkup = params.ReplyMarkup
	}
	_, err := b.bot.Send(msg)
	return err
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	return b.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text})
}

func (b *Bot) isAdmin(tgID int64) bool {
	_, ok := b.adminIDs[tgID]
	return ok
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("tg:chat_purchase:%d", chatID)
}

func (b *Bot) bindChat(ctx context.Context, chatID int64, token string) {
	if b.sessions == nil {
		return
	}
	if err := b.sessions.Set(ctx, sessionKey(chatID), token, sessionTTL); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("could not bind chat to purchase")
	}
}

func (b *Bot) boundToken(ctx context.Context, chatID int64) string {
	if b.sessions == nil {
		return ""
	}
	tok, err := b.sessions.Get(ctx, sessionKey(chatID))
	if err != nil {
		return ""
	}
	return tok
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	if b.limiter != nil {
		allowed, err := b.limiter.Allow(ctx, red.TelegramCommandKey(msg.From.ID, command), 20, time.Minute)
		if err != nil {
			b.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			metrics.IncBotCommand(command, "rate_limited")
			return b.reply(ctx, chatID, "Too many requests. Please wait a minute and try again.")
		}
	}

	switch command {
	case "/start":
		return b.handleStart(ctx, msg)
	case "/status":
		return b.handleStatus(ctx, msg)
	case "/help":
		metrics.IncBotCommand(command, "ok")
		return b.reply(ctx, chatID,
			"Send /start with the link from your order to connect a purchase.\n"+
				"Then pay using the instructions and send a photo of your receipt here.\n"+
				"/status shows where your purchase stands.")
	default:
		if len(msg.Photo) > 0 || msg.Document != nil {
			return b.handleReceipt(ctx, msg)
		}
		return b.reply(ctx, chatID, "I didn't understand that. Send /help for what I can do.")
	}
}

// handleStart answers the deep link: /start <initiation_token>. A bare /start
// just greets.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		metrics.IncBotCommand("/start", "ok")
		return b.reply(ctx, chatID, "Welcome! Open your order on the site and tap its Telegram link to continue here.")
	}

	p, err := b.purchases.AttachTelegram(ctx, token, chatID, msg.From.ID)
	if err != nil {
		metrics.IncBotCommand("/start", "error")
		if errors.Is(err, domain.ErrNotFound) {
			return b.reply(ctx, chatID, "That purchase link is not valid anymore. Please start a new order on the site.")
		}
		return err
	}
	b.bindChat(ctx, chatID, token)

	metrics.IncBotCommand("/start", "ok")
	text := fmt.Sprintf(
		"Your order %s is connected.\nAmount due: %d %s\n\n%s\n\nWhen you have paid, send a photo of the receipt here.",
		p.TransactionRef, p.Amount, p.Currency, b.instructions)
	return b.reply(ctx, chatID, text)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	token := b.boundToken(ctx, chatID)
	if token == "" {
		metrics.IncBotCommand("/status", "no_session")
		return b.reply(ctx, chatID, "No purchase is connected to this chat. Use the link from your order first.")
	}
	p, err := b.purchases.FindByToken(ctx, token)
	if err != nil {
		metrics.IncBotCommand("/status", "error")
		return b.reply(ctx, chatID, "I could not find that purchase anymore.")
	}
	metrics.IncBotCommand("/status", "ok")

	var line string
	switch p.Status {
	case model.PurchaseStatusAwaitingPayment:
		line = "Waiting for your payment. Send a receipt photo when done."
	case model.PurchaseStatusPendingVerification:
		line = "Your payment is being reviewed. You will hear from us shortly."
	case model.PurchaseStatusCompleted:
		line = "Verified! The item is in your library."
	case model.PurchaseStatusRejected:
		line = "This purchase was declined. Check the site for details."
	default:
		line = "Waiting for initiation."
	}
	return b.reply(ctx, chatID, fmt.Sprintf("Order %s: %s", p.TransactionRef, line))
}

// handleReceipt stores an uploaded photo/document and files it as payment
// proof for the purchase bound to this chat.
func (b *Bot) handleReceipt(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	token := b.boundToken(ctx, chatID)
	if token == "" {
		metrics.IncBotCommand("receipt", "no_session")
		return b.reply(ctx, chatID, "I don't know which purchase this receipt is for. Use the link from your order first.")
	}
	p, err := b.purchases.FindByToken(ctx, token)
	if err != nil {
		metrics.IncBotCommand("receipt", "error")
		return b.reply(ctx, chatID, "I could not find that purchase anymore.")
	}

	fileID, contentType := receiptFile(msg)
	if fileID == "" {
		return b.reply(ctx, chatID, "Please send the receipt as a photo or document.")
	}

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		metrics.IncBotCommand("receipt", "error")
		b.log.Error().Err(err).Str("file_id", fileID).Msg("receipt download failed")
		return b.reply(ctx, chatID, "I could not read that file. Please try again.")
	}
	path, err := b.receipts.Save(ctx, data, contentType)
	if err != nil {
		metrics.IncBotCommand("receipt", "error")
		return b.reply(ctx, chatID, "Storing the receipt failed. Please try again.")
	}

	if _, err := b.purchases.SubmitManualProof(ctx, model.BotPrincipal(), p.ID, []string{path}, nil); err != nil {
		metrics.IncBotCommand("receipt", "error")
		if errors.Is(err, domain.ErrConflict) {
			return b.reply(ctx, chatID, "This purchase is already decided; no more receipts are needed.")
		}
		return err
	}

	metrics.IncBotCommand("receipt", "ok")
	b.notifyReviewers(ctx, p)
	return b.reply(ctx, chatID, "Receipt received. We will verify your payment and let you know.")
}

// receiptFile picks the best uploaded rendition: the largest photo size, or
// the document as-is.
func receiptFile(msg *tgbotapi.Message) (fileID, contentType string) {
	if msg.Document != nil {
		return msg.Document.FileID, msg.Document.MimeType
	}
	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		return best.FileID, "image/jpeg"
	}
	return "", ""
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxReceiptBytes))
}

// notifyReviewers sends each admin the purchase summary with an inline
// approve/reject keyboard.
func (b *Bot) notifyReviewers(ctx context.Context, p *model.Purchase) {
	text := fmt.Sprintf("🧾 Payment proof for %s\nAmount: %d %s\nItem: %s %s",
		p.TransactionRef, p.Amount, p.Currency, p.ItemType, p.ItemID)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", verifyCallbackData(p.TransactionRef, true)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", verifyCallbackData(p.TransactionRef, false)),
		),
	)
	for id := range b.adminIDs {
		if err := b.SendMessage(ctx, adapter.SendMessageParams{ChatID: id, Text: text, ReplyMarkup: markup}); err != nil {
			b.log.Warn().Err(err).Int64("admin_id", id).Msg("reviewer notification failed")
		}
	}
}

func verifyCallbackData(txRef string, approve bool) string {
	if approve {
		return "verify:approve:" + txRef
	}
	return "verify:reject:" + txRef
}

// parseVerifyCallback inverts verifyCallbackData. ok is false for anything
// that is not a verification callback.
func parseVerifyCallback(data string) (txRef string, approve, ok bool) {
	switch {
	case strings.HasPrefix(data, "verify:approve:"):
		return strings.TrimPrefix(data, "verify:approve:"), true, true
	case strings.HasPrefix(data, "verify:reject:"):
		return strings.TrimPrefix(data, "verify:reject:"), false, true
	}
	return "", false, false
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("callback without sender")
	}
	defer func() { _, _ = b.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil {
		chatID = query.Message.Chat.ID
	}

	txRef, approve, ok := parseVerifyCallback(strings.TrimSpace(query.Data))
	if !ok {
		return nil
	}
	if !b.isAdmin(query.From.ID) {
		metrics.IncBotCommand("verify", "forbidden")
		return b.reply(ctx, chatID, "You are not authorized to review payments.")
	}
	if b.limiter != nil {
		if allowed, err := b.limiter.Allow(ctx, red.TelegramCommandKey(query.From.ID, "verify"), 30, time.Minute); err == nil && !allowed {
			return b.reply(ctx, chatID, "Too many review actions. Please slow down.")
		}
	}

	p, err := b.purchases.Finalize(ctx, txRef, approve)
	switch {
	case err == nil:
		metrics.IncBotCommand("verify", "ok")
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncBotCommand("verify", "unknown_ref")
		return b.reply(ctx, chatID, fmt.Sprintf("No purchase found for %s.", txRef))
	case errors.Is(err, domain.ErrConflict):
		// Another reviewer decided the other way first.
		metrics.IncBotCommand("verify", "conflict")
		return b.reply(ctx, chatID, fmt.Sprintf("%s was already decided as %s.", txRef, p.Status))
	case errors.Is(err, domain.ErrDependency):
		metrics.IncBotCommand("verify", "partial")
		if err := b.reply(ctx, chatID, fmt.Sprintf("%s verified, but delivery needs attention: %v", txRef, err)); err != nil {
			return err
		}
	default:
		metrics.IncBotCommand("verify", "error")
		return err
	}

	decision := "approved ✅"
	buyerNote := "Your payment is verified. Enjoy your books!"
	if !approve {
		decision = "rejected ❌"
		buyerNote = "Your payment could not be verified. Please check the site for details."
	}
	if err := b.reply(ctx, chatID, fmt.Sprintf("Purchase %s %s.", txRef, decision)); err != nil {
		return err
	}

	// Tell the buyer, when a chat is linked. Best-effort.
	if p != nil && p.TelegramChatID != nil {
		if err := b.reply(ctx, *p.TelegramChatID, buyerNote); err != nil {
			b.log.Warn().Err(err).Int64("chat_id", *p.TelegramChatID).Msg("buyer notification failed")
		}
	}
	return nil
}
