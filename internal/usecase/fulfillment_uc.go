// File: internal/usecase/fulfillment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/adapter"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/metrics"
)

// Compile-time check
var _ FulfillmentUseCase = (*fulfillmentUC)(nil)

// FulfillmentUseCase delivers what a completed purchase bought: library
// entries, plus a best-effort confirmation email. It runs strictly after the
// purchase reached its terminal state, so an already-granted book is success,
// not a duplicate.
type FulfillmentUseCase interface {
	GrantAccess(ctx context.Context, userID string, itemType model.ItemType, itemID string) error
}

type fulfillmentUC struct {
	library  repository.LibraryRepository
	items    repository.ItemRepository
	profiles repository.ProfileRepository
	mailer   adapter.Mailer
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewFulfillmentUseCase(
	library repository.LibraryRepository,
	items repository.ItemRepository,
	profiles repository.ProfileRepository,
	mailer adapter.Mailer,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *fulfillmentUC {
	return &fulfillmentUC{library: library, items: items, profiles: profiles, mailer: mailer, tm: tm, log: logger}
}

func (u *fulfillmentUC) GrantAccess(ctx context.Context, userID string, itemType model.ItemType, itemID string) error {
	var err error
	switch itemType {
	case model.ItemTypeBook:
		err = u.grantBook(ctx, userID, itemID)
	case model.ItemTypeBundle:
		err = u.grantBundle(ctx, userID, itemID)
	default:
		return domain.ErrInvalidArgument
	}
	metrics.IncFulfillment(string(itemType), err == nil)
	if err != nil {
		return err
	}

	u.sendConfirmation(userID, itemType, itemID)
	return nil
}

func (u *fulfillmentUC) grantBook(ctx context.Context, userID, bookID string) error {
	entry, err := model.NewLibraryEntry(userID, bookID)
	if err != nil {
		return err
	}
	if err := u.library.Upsert(ctx, repository.NoTX, entry); err != nil {
		return fmt.Errorf("grant book %s: %w", bookID, errors.Join(domain.ErrDependency, err))
	}
	return nil
}

// grantBundle grants every constituent book in one transaction. If the
// transaction cannot commit, it falls back to book-by-book grants to salvage
// what it can, and reports the leftovers as a reconciliation error: the
// purchase stays completed, the delivery gap must not be silent.
func (u *fulfillmentUC) grantBundle(ctx context.Context, userID, bundleID string) error {
	bookIDs, err := u.items.BundleBookIDs(ctx, repository.NoTX, bundleID)
	if err != nil {
		return fmt.Errorf("resolve bundle %s: %w", bundleID, errors.Join(domain.ErrDependency, err))
	}

	txErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, bookID := range bookIDs {
			entry, err := model.NewLibraryEntry(userID, bookID)
			if err != nil {
				return err
			}
			if err := u.library.Upsert(ctx, tx, entry); err != nil {
				return fmt.Errorf("book %s: %w", bookID, err)
			}
		}
		return nil
	})
	if txErr == nil {
		return nil
	}
	u.log.Warn().Err(txErr).Str("bundle_id", bundleID).Msg("transactional bundle grant failed; salvaging per book")

	var failed []string
	for _, bookID := range bookIDs {
		entry, err := model.NewLibraryEntry(userID, bookID)
		if err != nil {
			failed = append(failed, bookID)
			continue
		}
		if err := u.library.Upsert(ctx, repository.NoTX, entry); err != nil {
			failed = append(failed, bookID)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	metrics.IncPartialFulfillment()
	u.log.Error().Str("user_id", userID).Str("bundle_id", bundleID).
		Strs("failed_books", failed).
		Msg("bundle delivery incomplete; manual reconciliation required")
	return fmt.Errorf("bundle %s delivery incomplete, failed books [%s]: %w",
		bundleID, strings.Join(failed, ","), domain.ErrDependency)
}

// sendConfirmation emails the buyer on a detached context. Delivery failure is
// logged and counted, never surfaced: the purchase is already complete.
func (u *fulfillmentUC) sendConfirmation(userID string, itemType model.ItemType, itemID string) {
	if u.mailer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		profile, err := u.profiles.FindByUserID(ctx, repository.NoTX, userID)
		if err != nil || profile.Email == "" {
			metrics.IncNotification("email", false)
			u.log.Warn().Err(err).Str("user_id", userID).Msg("no email address for purchase confirmation")
			return
		}

		var title string
		if item, err := u.items.FindByTypeAndID(ctx, repository.NoTX, itemType, itemID); err == nil {
			title = item.Title
		}
		body := fmt.Sprintf("<p>Your purchase of <b>%s</b> is confirmed. It is now available in your library.</p>", title)
		if err := u.mailer.Send(ctx, profile.Email, "Your purchase is ready", body); err != nil {
			metrics.IncNotification("email", false)
			u.log.Warn().Err(err).Str("user_id", userID).Msg("confirmation email failed")
			return
		}
		metrics.IncNotification("email", true)
	}()
}
