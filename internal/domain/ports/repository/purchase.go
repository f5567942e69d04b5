package repository

import (
	"context"
	"time"

	"bookstore-payments/internal/domain/model"
)

// StatusFields carries the optional columns a conditional status transition
// may set alongside the status itself.
type StatusFields struct {
	ProviderRef    *string
	TelegramChatID *int64
	TelegramUserID *int64
	ReviewerNotes  *string
	ReviewedAt     *time.Time
}

type PurchaseRepository interface {
	// Create inserts a new purchase. Returns domain.ErrDuplicatePurchase when
	// a non-terminal purchase already exists for the same (user, item), and
	// domain.ErrAlreadyExists on a transaction-reference collision so the
	// caller can regenerate and retry.
	Create(ctx context.Context, tx Tx, p *model.Purchase) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Purchase, error)
	FindByTransactionRef(ctx context.Context, tx Tx, ref string) (*model.Purchase, error)
	FindByToken(ctx context.Context, tx Tx, token string) (*model.Purchase, error)
	// FindActiveByUserAndItem returns the user's non-terminal purchase for an
	// item, or domain.ErrNotFound.
	FindActiveByUserAndItem(ctx context.Context, tx Tx, userID string, itemType model.ItemType, itemID string) (*model.Purchase, error)
	// UpdateStatusIf atomically transitions id from `from` to `to` in a single
	// conditional write. Returns false (no error) when the row's current
	// status did not match, which is how concurrent finalizers lose the race.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.PurchaseStatus, fields *StatusFields) (bool, error)
	// ListPending returns purchases awaiting admin review oldest-first, plus
	// the total count for pagination.
	ListPending(ctx context.Context, tx Tx, offset, limit int) ([]*model.Purchase, int, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Purchase, error)
}
