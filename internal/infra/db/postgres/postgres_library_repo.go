package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
)

var _ repository.LibraryRepository = (*libraryRepo)(nil)

type libraryRepo struct{ pool *pgxpool.Pool }

func NewLibraryRepo(pool *pgxpool.Pool) *libraryRepo {
	return &libraryRepo{pool: pool}
}

const libraryColumns = `id, user_id, book_id, status, progress, created_at, updated_at`

func scanLibraryEntry(row pgx.Row) (*model.LibraryEntry, error) {
	e := &model.LibraryEntry{}
	if err := row.Scan(&e.ID, &e.UserID, &e.BookID, &e.Status, &e.Progress, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *libraryRepo) Create(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
	const q = `
INSERT INTO user_library (id, user_id, book_id, status, progress, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.UserID, e.BookID, e.Status, e.Progress, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, ""):
			return domain.ErrAlreadyExists
		case err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

// Upsert tolerates a pre-existing (user, book) entry. Fulfillment runs only
// after payment, so an existing grant counts as success.
func (r *libraryRepo) Upsert(ctx context.Context, tx repository.Tx, e *model.LibraryEntry) error {
	const q = `
INSERT INTO user_library (id, user_id, book_id, status, progress, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (user_id, book_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.UserID, e.BookID, e.Status, e.Progress, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *libraryRepo) FindByUserAndBook(ctx context.Context, tx repository.Tx, userID, bookID string) (*model.LibraryEntry, error) {
	const q = `SELECT ` + libraryColumns + ` FROM user_library WHERE user_id=$1 AND book_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, bookID)
	if err != nil {
		return nil, err
	}
	return scanLibraryEntry(row)
}

func (r *libraryRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.LibraryEntry, error) {
	const q = `SELECT ` + libraryColumns + ` FROM user_library WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.LibraryEntry
	for rows.Next() {
		e, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *libraryRepo) UpdateProgress(ctx context.Context, tx repository.Tx, userID, bookID string, progress float64, status model.LibraryStatus) error {
	const q = `UPDATE user_library SET progress=$3, status=$4, updated_at=NOW() WHERE user_id=$1 AND book_id=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, bookID, progress, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
