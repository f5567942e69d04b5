//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v4"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/usecase"
)

type fulfillmentUCTestDeps struct {
	library  *MockLibraryRepo
	items    *MockItemRepo
	profiles *MockProfileRepo
	mailer   *MockMailer
	tm       *MockTxManager
	uc       usecase.FulfillmentUseCase
}

func newFulfillmentUCDeps() *fulfillmentUCTestDeps {
	deps := &fulfillmentUCTestDeps{
		library:  NewMockLibraryRepo(),
		items:    NewMockItemRepo(),
		profiles: NewMockProfileRepo(),
		mailer:   &MockMailer{},
		tm:       NewMockTxManager(),
	}
	deps.uc = usecase.NewFulfillmentUseCase(deps.library, deps.items, deps.profiles, deps.mailer, deps.tm, newTestLogger())
	return deps
}

func TestFulfillmentUseCase_GrantBook(t *testing.T) {
	ctx := context.Background()

	t.Run("should add the book to the library", func(t *testing.T) {
		deps := newFulfillmentUCDeps()

		if err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBook, "book-1"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		e, err := deps.library.FindByUserAndBook(ctx, nil, "user-1", "book-1")
		if err != nil {
			t.Fatalf("expected library entry: %v", err)
		}
		if e.Status != model.LibraryStatusOwned {
			t.Errorf("expected owned entry, got %s", e.Status)
		}
	})

	t.Run("an already-owned book counts as success", func(t *testing.T) {
		deps := newFulfillmentUCDeps()
		if err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBook, "book-1"); err != nil {
			t.Fatal(err)
		}

		if err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBook, "book-1"); err != nil {
			t.Fatalf("regrant must be a no-op, got: %v", err)
		}
	})

	t.Run("a store failure is a dependency error", func(t *testing.T) {
		deps := newFulfillmentUCDeps()
		deps.library.UpsertFunc = func(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
			return errors.New("connection refused")
		}

		err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBook, "book-1")

		if !errors.Is(err, domain.ErrDependency) {
			t.Fatalf("expected ErrDependency, got: %v", err)
		}
	})
}

func TestFulfillmentUseCase_GrantBundle(t *testing.T) {
	ctx := context.Background()

	seed := func(deps *fulfillmentUCTestDeps) {
		deps.items.seedBundle(
			&model.Item{ID: "bundle-1", Type: model.ItemTypeBundle, Title: "Starter Pack", Price: 49900},
			[]string{"book-1", "book-2", "book-3"})
	}

	t.Run("should grant every book in one transaction", func(t *testing.T) {
		deps := newFulfillmentUCDeps()
		seed(deps)

		if err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBundle, "bundle-1"); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		for _, bookID := range []string{"book-1", "book-2", "book-3"} {
			if _, err := deps.library.FindByUserAndBook(ctx, nil, "user-1", bookID); err != nil {
				t.Errorf("expected %s granted: %v", bookID, err)
			}
		}
	})

	t.Run("a failed transaction falls back to per-book salvage", func(t *testing.T) {
		deps := newFulfillmentUCDeps()
		seed(deps)
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			return errors.New("could not serialize access")
		}

		if err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBundle, "bundle-1"); err != nil {
			t.Fatalf("full salvage must succeed, got: %v", err)
		}
		for _, bookID := range []string{"book-1", "book-2", "book-3"} {
			if _, err := deps.library.FindByUserAndBook(ctx, nil, "user-1", bookID); err != nil {
				t.Errorf("expected %s salvaged: %v", bookID, err)
			}
		}
	})

	t.Run("partial salvage reports the failed books", func(t *testing.T) {
		deps := newFulfillmentUCDeps()
		seed(deps)
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			return errors.New("could not serialize access")
		}
		deps.library.UpsertFunc = func(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
			if e.BookID == "book-2" {
				return errors.New("disk full")
			}
			deps.library.mu.Lock()
			defer deps.library.mu.Unlock()
			cp := *e
			deps.library.data[libKey(e.UserID, e.BookID)] = &cp
			return nil
		}

		err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBundle, "bundle-1")

		if !errors.Is(err, domain.ErrDependency) {
			t.Fatalf("expected ErrDependency, got: %v", err)
		}
		if !strings.Contains(err.Error(), "book-2") {
			t.Errorf("expected failed book named in error, got: %v", err)
		}
		// The salvageable books still landed.
		if _, err := deps.library.FindByUserAndBook(ctx, nil, "user-1", "book-1"); err != nil {
			t.Errorf("expected book-1 salvaged: %v", err)
		}
		if _, err := deps.library.FindByUserAndBook(ctx, nil, "user-1", "book-3"); err != nil {
			t.Errorf("expected book-3 salvaged: %v", err)
		}
	})

	t.Run("an unknown bundle is a dependency error", func(t *testing.T) {
		deps := newFulfillmentUCDeps()

		err := deps.uc.GrantAccess(ctx, "user-1", model.ItemTypeBundle, "ghost")

		if !errors.Is(err, domain.ErrDependency) {
			t.Fatalf("expected ErrDependency, got: %v", err)
		}
	})
}
