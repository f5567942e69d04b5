package repository

import (
	"context"

	"bookstore-payments/internal/domain/model"
)

type LibraryRepository interface {
	// Create inserts a new entry; domain.ErrAlreadyExists when the (user,
	// book) pair is already present.
	Create(ctx context.Context, tx Tx, e *model.LibraryEntry) error
	// Upsert inserts the entry unless the (user, book) pair exists, in which
	// case it is a no-op. Used by fulfillment, where a pre-existing entry
	// counts as success.
	Upsert(ctx context.Context, tx Tx, e *model.LibraryEntry) error
	FindByUserAndBook(ctx context.Context, tx Tx, userID, bookID string) (*model.LibraryEntry, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.LibraryEntry, error)
	UpdateProgress(ctx context.Context, tx Tx, userID, bookID string, progress float64, status model.LibraryStatus) error
}
