// File: internal/usecase/library_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
)

// Compile-time check
var _ LibraryUseCase = (*libraryUC)(nil)

// LibraryUseCase covers the owned-content surface: free-book grants, the
// user's shelf, and reading progress. Paid grants never come through here;
// those go through fulfillment after verification.
type LibraryUseCase interface {
	// GrantFree adds a zero-priced book to the user's library. A priced book
	// is refused; a book already on the shelf is ErrAlreadyExists.
	GrantFree(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error)
	ListByUser(ctx context.Context, caller model.Principal, userID string) ([]*model.LibraryEntry, error)
	// UpdateProgress records a reading position in the 0..100 range and flips
	// the entry to completed at 100.
	UpdateProgress(ctx context.Context, caller model.Principal, userID, bookID string, progress float64) error
}

type libraryUC struct {
	library repository.LibraryRepository
	items   repository.ItemRepository

	log *zerolog.Logger
}

func NewLibraryUseCase(
	library repository.LibraryRepository,
	items repository.ItemRepository,
	logger *zerolog.Logger,
) *libraryUC {
	return &libraryUC{library: library, items: items, log: logger}
}

func (u *libraryUC) GrantFree(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
	if userID == "" || bookID == "" {
		return nil, domain.ErrInvalidArgument
	}
	book, err := u.items.FindByTypeAndID(ctx, repository.NoTX, model.ItemTypeBook, bookID)
	if err != nil {
		return nil, err
	}
	if !book.IsFree() {
		// Priced books must go through the purchase flow.
		return nil, domain.ErrInvalidArgument
	}

	entry, err := model.NewLibraryEntry(userID, bookID)
	if err != nil {
		return nil, err
	}
	if err := u.library.Create(ctx, repository.NoTX, entry); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Str("book_id", bookID).Msg("free book granted")
	return entry, nil
}

func (u *libraryUC) ListByUser(ctx context.Context, caller model.Principal, userID string) ([]*model.LibraryEntry, error) {
	if !caller.IsAdmin() && !caller.Owns(userID) {
		return nil, domain.ErrForbidden
	}
	return u.library.ListByUser(ctx, repository.NoTX, userID)
}

func (u *libraryUC) UpdateProgress(ctx context.Context, caller model.Principal, userID, bookID string, progress float64) error {
	if !caller.Owns(userID) {
		return domain.ErrForbidden
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	status := model.LibraryStatusOwned
	if progress >= 100 {
		status = model.LibraryStatusCompleted
	}
	// Confirms ownership before writing.
	if _, err := u.library.FindByUserAndBook(ctx, repository.NoTX, userID, bookID); err != nil {
		return err
	}
	return u.library.UpdateProgress(ctx, repository.NoTX, userID, bookID, progress, status)
}
