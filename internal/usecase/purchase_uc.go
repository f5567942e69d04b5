// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/metrics"
)

// Compile-time check
var _ PurchaseUseCase = (*purchaseUC)(nil)

// PurchaseUseCase is the purchase state machine. Every transition goes through
// the repository's conditional update, so concurrent finalizers (admin vs bot,
// duplicate webhook delivery, double-clicked buttons) race safely: exactly one
// write wins and the loser resolves to an idempotent no-op or a conflict.
type PurchaseUseCase interface {
	// Initiate validates and prices the item, guards against a duplicate
	// active purchase, and creates the purchase with a fresh transaction
	// reference for display to the user.
	Initiate(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.Purchase, error)
	// SubmitTransactionID records the out-of-band payment id supplied by the
	// owner and advances the purchase to pending_verification.
	SubmitTransactionID(ctx context.Context, caller model.Principal, purchaseID, txID string, claimedAmount *int64) (*model.Purchase, error)
	// SubmitManualProof stores receipt evidence for admin review.
	SubmitManualProof(ctx context.Context, caller model.Principal, purchaseID string, receiptPaths []string, claimedAmount *int64) (*model.PaymentSubmission, error)
	// AdminVerify finalizes a purchase under admin authority. Repeating a
	// verification that already reached the same terminal state is a no-op.
	AdminVerify(ctx context.Context, purchaseID, adminID string, approve bool, notes *string) (*model.Purchase, error)
	// Finalize is the bot/gateway variant of AdminVerify, addressed by
	// transaction reference instead of purchase id.
	Finalize(ctx context.Context, transactionRef string, approve bool) (*model.Purchase, error)
	// Cancel is owner-only and allowed before verification starts.
	Cancel(ctx context.Context, caller model.Principal, purchaseID, reason string) (*model.Purchase, error)
	// FindByToken is the bot-facing lookup by initiation token.
	FindByToken(ctx context.Context, token string) (*model.Purchase, error)
	// AttachTelegram links a bot chat to a purchase found via its token and
	// moves it to awaiting_payment. Safe to repeat.
	AttachTelegram(ctx context.Context, token string, chatID, tgUserID int64) (*model.Purchase, error)
	// Get returns a purchase to its owner or an admin.
	Get(ctx context.Context, caller model.Principal, purchaseID string) (*model.Purchase, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]*model.Purchase, error)
	ListSubmissions(ctx context.Context, purchaseID string) ([]*model.PaymentSubmission, error)
}

type purchaseUC struct {
	purchases   repository.PurchaseRepository
	submissions repository.SubmissionRepository
	items       repository.ItemRepository
	fulfillment FulfillmentUseCase
	notifier    adapter.AdminNotifier

	currency  string
	refPrefix string

	log *zerolog.Logger
}

func NewPurchaseUseCase(
	purchases repository.PurchaseRepository,
	submissions repository.SubmissionRepository,
	items repository.ItemRepository,
	fulfillment FulfillmentUseCase,
	notifier adapter.AdminNotifier,
	currency, refPrefix string,
	logger *zerolog.Logger,
) *purchaseUC {
	return &purchaseUC{
		purchases:   purchases,
		submissions: submissions,
		items:       items,
		fulfillment: fulfillment,
		notifier:    notifier,
		currency:    currency,
		refPrefix:   refPrefix,
		log:         logger,
	}
}

func (u *purchaseUC) newTransactionRef() string {
	return u.refPrefix + ulid.Make().String()
}

func (u *purchaseUC) Initiate(ctx context.Context, userID string, itemType model.ItemType, itemID string) (*model.Purchase, error) {
	if userID == "" || itemID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if itemType != model.ItemTypeBook && itemType != model.ItemTypeBundle {
		return nil, domain.ErrInvalidArgument
	}

	item, err := u.items.FindByTypeAndID(ctx, repository.NoTX, itemType, itemID)
	if err != nil {
		return nil, err
	}
	// Free items go through the direct library grant, never a purchase.
	if item.IsFree() {
		return nil, domain.ErrFreeItem
	}

	if existing, err := u.purchases.FindActiveByUserAndItem(ctx, repository.NoTX, userID, itemType, itemID); err == nil && existing != nil {
		return nil, domain.ErrDuplicatePurchase
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p, err := model.NewPurchase("", userID, itemType, itemID, item.Price, u.currency)
	if err != nil {
		return nil, err
	}

	// A reference collision is astronomically unlikely but cheap to retry.
	for attempt := 0; ; attempt++ {
		p.TransactionRef = u.newTransactionRef()
		p.InitiationToken = ulid.Make().String()
		err = u.purchases.Create(ctx, repository.NoTX, p)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrAlreadyExists) && attempt < 2 {
			continue
		}
		return nil, err
	}

	metrics.IncPurchase(string(itemType))
	u.log.Info().Str("purchase_id", p.ID).Str("tx_ref", p.TransactionRef).
		Str("item_type", string(itemType)).Str("item_id", itemID).
		Int64("amount", p.Amount).Msg("purchase initiated")
	return p, nil
}

// loadOwned fetches a purchase and enforces ownership. Admins pass, and so
// does the bot: the gateway already authenticated it and it acts on behalf of
// the buyer it is chatting with. A caller that is none of those gets
// ErrForbidden without learning whether the id exists.
func (u *purchaseUC) loadOwned(ctx context.Context, caller model.Principal, purchaseID string) (*model.Purchase, error) {
	p, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && caller.Kind == model.PrincipalAnonymous {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !caller.Owns(p.UserID) && !caller.IsAdmin() && !caller.IsBot() {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

// advanceToVerification walks a purchase to pending_verification, passing
// through awaiting_payment if the user skipped the initiation acknowledgement.
// Returns the refreshed purchase and whether any write was applied.
func (u *purchaseUC) advanceToVerification(ctx context.Context, p *model.Purchase, fields *repository.StatusFields) (*model.Purchase, bool, error) {
	if p.Status == model.PurchaseStatusPendingInitiation {
		ok, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID,
			model.PurchaseStatusPendingInitiation, model.PurchaseStatusAwaitingPayment, nil)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			metrics.IncConflict("advance_initiation")
		}
	}

	ok, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID,
		model.PurchaseStatusAwaitingPayment, model.PurchaseStatusPendingVerification, fields)
	if err != nil {
		return nil, false, err
	}
	refreshed, err := u.purchases.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, false, err
	}
	return refreshed, ok, nil
}

func (u *purchaseUC) SubmitTransactionID(ctx context.Context, caller model.Principal, purchaseID, txID string, claimedAmount *int64) (*model.Purchase, error) {
	txID = strings.TrimSpace(txID)
	if txID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if claimedAmount != nil && *claimedAmount <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	p, err := u.loadOwned(ctx, caller, purchaseID)
	if err != nil {
		return nil, err
	}

	if p.Status.IsTerminal() {
		// Stale retry on a decided purchase; surface the conflict and let the
		// API boundary decide whether to soften it.
		return p, domain.ErrConflict
	}

	refreshed, applied, err := u.advanceToVerification(ctx, p, &repository.StatusFields{ProviderRef: &txID})
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.IncTransition(string(model.PurchaseStatusPendingVerification), "user")
		u.log.Info().Str("purchase_id", p.ID).Str("tx_ref", p.TransactionRef).Msg("transaction id submitted")
		u.notifyAdmins(fmt.Sprintf("Transaction id submitted for %s (%d %s). Review pending.",
			p.TransactionRef, p.Amount, p.Currency))
	} else {
		// Duplicate submission raced an earlier one; the purchase is already
		// under (or past) review, which is what the user wanted.
		metrics.IncConflict("submit_transaction_id")
	}
	return refreshed, nil
}

func (u *purchaseUC) SubmitManualProof(ctx context.Context, caller model.Principal, purchaseID string, receiptPaths []string, claimedAmount *int64) (*model.PaymentSubmission, error) {
	p, err := u.loadOwned(ctx, caller, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, domain.ErrConflict
	}

	sub, err := model.NewPaymentSubmission(p.ID, p.UserID, receiptPaths, claimedAmount)
	if err != nil {
		return nil, err
	}
	if err := u.submissions.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}

	// Proof in hand moves the purchase into the review queue.
	if _, applied, err := u.advanceToVerification(ctx, p, nil); err != nil {
		u.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("proof stored but status advance failed")
	} else if applied {
		metrics.IncTransition(string(model.PurchaseStatusPendingVerification), "user")
	}

	u.notifyAdmins(fmt.Sprintf("Payment proof submitted for %s (%d %s). Review pending.",
		p.TransactionRef, p.Amount, p.Currency))
	return sub, nil
}

// finalize applies the terminal decision with full idempotency: a replay that
// finds the purchase already in the target state returns it unchanged.
func (u *purchaseUC) finalize(ctx context.Context, p *model.Purchase, approve bool, notes *string, actor string) (*model.Purchase, error) {
	target := model.PurchaseStatusRejected
	if approve {
		target = model.PurchaseStatusCompleted
	}

	if p.Status.IsTerminal() {
		if p.Status == target {
			return p, nil // idempotent replay
		}
		return p, domain.ErrConflict
	}
	if p.Status != model.PurchaseStatusPendingVerification {
		return p, domain.ErrConflict
	}

	now := time.Now()
	ok, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID,
		model.PurchaseStatusPendingVerification, target,
		&repository.StatusFields{ReviewerNotes: notes, ReviewedAt: &now})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race; resolve against whatever won.
		metrics.IncConflict("finalize")
		current, err := u.purchases.FindByID(ctx, repository.NoTX, p.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		return current, domain.ErrConflict
	}

	refreshed, err := u.purchases.FindByID(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, err
	}
	metrics.IncTransition(string(target), actor)

	u.closeSubmissions(ctx, p.ID, approve)

	if !approve {
		u.log.Info().Str("purchase_id", p.ID).Str("actor", actor).Msg("purchase rejected")
		return refreshed, nil
	}

	metrics.AddRevenue(refreshed.Currency, refreshed.Amount)
	u.log.Info().Str("purchase_id", p.ID).Str("actor", actor).Msg("purchase completed")

	// Payment was genuinely verified: the completed status stays even when
	// delivery fails. The error escalates for out-of-band reconciliation.
	if err := u.fulfillment.GrantAccess(ctx, refreshed.UserID, refreshed.ItemType, refreshed.ItemID); err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("fulfillment failed after completion; needs reconciliation")
		return refreshed, err
	}
	return refreshed, nil
}

// closeSubmissions settles the audit trail to match the decision. Best-effort:
// the purchase status is the source of truth.
func (u *purchaseUC) closeSubmissions(ctx context.Context, purchaseID string, approve bool) {
	subs, err := u.submissions.ListByPurchase(ctx, repository.NoTX, purchaseID)
	if err != nil {
		u.log.Warn().Err(err).Str("purchase_id", purchaseID).Msg("could not load submissions to settle")
		return
	}
	target := model.SubmissionStatusRejected
	if approve {
		target = model.SubmissionStatusApproved
	}
	for _, s := range subs {
		if s.Status != model.SubmissionStatusPending {
			continue
		}
		if err := u.submissions.UpdateStatus(ctx, repository.NoTX, s.ID, target); err != nil {
			u.log.Warn().Err(err).Str("submission_id", s.ID).Msg("could not settle submission")
		}
	}
}

func (u *purchaseUC) AdminVerify(ctx context.Context, purchaseID, adminID string, approve bool, notes *string) (*model.Purchase, error) {
	p, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		return nil, err
	}
	u.log.Debug().Str("purchase_id", purchaseID).Str("admin_id", adminID).Bool("approve", approve).Msg("admin verification")
	return u.finalize(ctx, p, approve, notes, "admin")
}

func (u *purchaseUC) Finalize(ctx context.Context, transactionRef string, approve bool) (*model.Purchase, error) {
	p, err := u.purchases.FindByTransactionRef(ctx, repository.NoTX, transactionRef)
	if err != nil {
		return nil, err
	}
	return u.finalize(ctx, p, approve, nil, "bot")
}

func (u *purchaseUC) Cancel(ctx context.Context, caller model.Principal, purchaseID, reason string) (*model.Purchase, error) {
	p, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		return nil, err
	}
	// Cancellation is strictly owner-only; even admins use reject instead.
	if !caller.Owns(p.UserID) {
		return nil, domain.ErrForbidden
	}

	now := time.Now()
	fields := &repository.StatusFields{ReviewedAt: &now}
	if reason != "" {
		note := "cancelled by user: " + reason
		fields.ReviewerNotes = &note
	}

	for _, from := range []model.PurchaseStatus{model.PurchaseStatusPendingInitiation, model.PurchaseStatusAwaitingPayment} {
		ok, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID, from, model.PurchaseStatusRejected, fields)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.IncTransition(string(model.PurchaseStatusRejected), "user")
			u.notifyAdmins(fmt.Sprintf("Purchase %s cancelled by buyer. Reason: %s", p.TransactionRef, reason))
			return u.purchases.FindByID(ctx, repository.NoTX, p.ID)
		}
	}

	// Under review or already decided; cancellation is no longer an option.
	metrics.IncConflict("cancel")
	return nil, domain.ErrConflict
}

func (u *purchaseUC) FindByToken(ctx context.Context, token string) (*model.Purchase, error) {
	if token == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.purchases.FindByToken(ctx, repository.NoTX, token)
}

func (u *purchaseUC) AttachTelegram(ctx context.Context, token string, chatID, tgUserID int64) (*model.Purchase, error) {
	p, err := u.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	fields := &repository.StatusFields{TelegramChatID: &chatID, TelegramUserID: &tgUserID}

	ok, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID,
		model.PurchaseStatusPendingInitiation, model.PurchaseStatusAwaitingPayment, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Repeat deep-link tap: keep the chat linkage fresh without moving the
		// status anywhere.
		if _, err := u.purchases.UpdateStatusIf(ctx, repository.NoTX, p.ID,
			p.Status, p.Status, fields); err != nil {
			return nil, err
		}
	} else {
		metrics.IncTransition(string(model.PurchaseStatusAwaitingPayment), "bot")
	}
	return u.purchases.FindByID(ctx, repository.NoTX, p.ID)
}

func (u *purchaseUC) Get(ctx context.Context, caller model.Principal, purchaseID string) (*model.Purchase, error) {
	return u.loadOwned(ctx, caller, purchaseID)
}

func (u *purchaseUC) ListByUser(ctx context.Context, userID string, page, limit int) ([]*model.Purchase, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.purchases.ListByUser(ctx, repository.NoTX, userID, (page-1)*limit, limit)
}

func (u *purchaseUC) ListSubmissions(ctx context.Context, purchaseID string) ([]*model.PaymentSubmission, error) {
	return u.submissions.ListByPurchase(ctx, repository.NoTX, purchaseID)
}

// notifyAdmins fans out a short alert without blocking the caller. It runs on
// a detached context because the request that produced it may finish first;
// losing a notification never fails the transition that produced it.
func (u *purchaseUC) notifyAdmins(text string) {
	if u.notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.notifier.NotifyAdmins(nctx, text); err != nil {
			metrics.IncNotification("telegram", false)
			u.log.Warn().Err(err).Msg("admin notification failed")
			return
		}
		metrics.IncNotification("telegram", true)
	}()
}
