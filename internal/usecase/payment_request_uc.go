// File: internal/usecase/payment_request_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentRequestUseCase = (*paymentRequestUC)(nil)

// PaymentRequestUseCase handles the contact-based alternate payment path:
// instead of paying and submitting proof, the user leaves contact details and
// an admin walks the request to completion by hand. Completion grants access
// through the same fulfillment dispatcher as a verified purchase.
type PaymentRequestUseCase interface {
	Create(ctx context.Context, userID string, itemType model.ItemType, itemID, contact string, note *string) (*model.PaymentRequest, error)
	Get(ctx context.Context, caller model.Principal, id string) (*model.PaymentRequest, error)
	// ListByStatus is admin-only; total is the full count for the status.
	ListByStatus(ctx context.Context, caller model.Principal, status model.PaymentRequestStatus, page, limit int) ([]*model.PaymentRequest, int, error)
	// UpdateStatus is the admin review operation. Moving a request to
	// completed triggers fulfillment; an illegal transition is ErrConflict.
	UpdateStatus(ctx context.Context, caller model.Principal, id string, to model.PaymentRequestStatus) (*model.PaymentRequest, error)
	// Cancel is owner-only and allowed while the request is pending or
	// contacted.
	Cancel(ctx context.Context, caller model.Principal, id string) (*model.PaymentRequest, error)
}

type paymentRequestUC struct {
	requests    repository.PaymentRequestRepository
	items       repository.ItemRepository
	fulfillment FulfillmentUseCase
	notifier    adapter.AdminNotifier

	log *zerolog.Logger
}

func NewPaymentRequestUseCase(
	requests repository.PaymentRequestRepository,
	items repository.ItemRepository,
	fulfillment FulfillmentUseCase,
	notifier adapter.AdminNotifier,
	logger *zerolog.Logger,
) *paymentRequestUC {
	return &paymentRequestUC{
		requests:    requests,
		items:       items,
		fulfillment: fulfillment,
		notifier:    notifier,
		log:         logger,
	}
}

func (u *paymentRequestUC) Create(ctx context.Context, userID string, itemType model.ItemType, itemID, contact string, note *string) (*model.PaymentRequest, error) {
	item, err := u.items.FindByTypeAndID(ctx, repository.NoTX, itemType, itemID)
	if err != nil {
		return nil, err
	}
	if item.IsFree() {
		return nil, domain.ErrFreeItem
	}

	r, err := model.NewPaymentRequest(userID, itemType, itemID, contact, note)
	if err != nil {
		return nil, err
	}
	if err := u.requests.Save(ctx, repository.NoTX, r); err != nil {
		return nil, err
	}

	u.log.Info().
		Str("request_id", r.ID).
		Str("user_id", userID).
		Str("item_id", itemID).
		Msg("payment request created")
	if u.notifier != nil {
		text := fmt.Sprintf("📞 New payment request for %q\nContact: %s", item.Title, contact)
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := u.notifier.NotifyAdmins(dctx, text); err != nil {
				u.log.Warn().Err(err).Str("request_id", r.ID).Msg("admin notification failed")
			}
		}()
	}
	return r, nil
}

func (u *paymentRequestUC) Get(ctx context.Context, caller model.Principal, id string) (*model.PaymentRequest, error) {
	r, err := u.requests.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && !caller.Owns(r.UserID) {
		return nil, domain.ErrForbidden
	}
	return r, nil
}

func (u *paymentRequestUC) ListByStatus(ctx context.Context, caller model.Principal, status model.PaymentRequestStatus, page, limit int) ([]*model.PaymentRequest, int, error) {
	if !caller.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return u.requests.ListByStatus(ctx, repository.NoTX, status, (page-1)*limit, limit)
}

func (u *paymentRequestUC) UpdateStatus(ctx context.Context, caller model.Principal, id string, to model.PaymentRequestStatus) (*model.PaymentRequest, error) {
	if !caller.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	r, err := u.requests.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	// A repeated move to the state we already hold is an idempotent no-op.
	if r.Status == to {
		return r, nil
	}
	if !r.Status.CanTransition(to) {
		return nil, domain.ErrConflict
	}

	updated, err := u.requests.UpdateStatusIf(ctx, repository.NoTX, id, r.Status, to)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost the race; another reviewer moved it first.
		return nil, domain.ErrConflict
	}
	r.Status = to

	u.log.Info().
		Str("request_id", id).
		Str("status", string(to)).
		Str("admin_id", caller.UserID).
		Msg("payment request updated")

	if to == model.PaymentRequestStatusCompleted {
		if err := u.fulfillment.GrantAccess(ctx, r.UserID, r.ItemType, r.ItemID); err != nil {
			// The request stays completed; fulfillment is reconciled from logs.
			u.log.Error().Err(err).Str("request_id", id).Msg("fulfillment after payment request completion failed")
			return r, err
		}
	}
	return r, nil
}

func (u *paymentRequestUC) Cancel(ctx context.Context, caller model.Principal, id string) (*model.PaymentRequest, error) {
	r, err := u.requests.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(r.UserID) {
		return nil, domain.ErrForbidden
	}
	if r.Status == model.PaymentRequestStatusCancelled {
		return r, nil
	}
	if !r.Status.CanTransition(model.PaymentRequestStatusCancelled) {
		return nil, domain.ErrConflict
	}
	updated, err := u.requests.UpdateStatusIf(ctx, repository.NoTX, id, r.Status, model.PaymentRequestStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrConflict
	}
	r.Status = model.PaymentRequestStatusCancelled
	return r, nil
}
