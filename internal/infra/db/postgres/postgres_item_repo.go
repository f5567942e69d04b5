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

var _ repository.ItemRepository = (*itemRepo)(nil)

// itemRepo reads the catalog tables owned by the storefront. This service
// never writes them.
type itemRepo struct{ pool *pgxpool.Pool }

func NewItemRepo(pool *pgxpool.Pool) *itemRepo {
	return &itemRepo{pool: pool}
}

func (r *itemRepo) FindByTypeAndID(ctx context.Context, tx repository.Tx, itemType model.ItemType, id string) (*model.Item, error) {
	var q string
	switch itemType {
	case model.ItemTypeBook:
		q = `SELECT id, title, price FROM books WHERE id=$1;`
	case model.ItemTypeBundle:
		q = `SELECT id, title, price FROM bundles WHERE id=$1;`
	default:
		return nil, domain.ErrInvalidArgument
	}

	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	it := &model.Item{Type: itemType}
	if err := row.Scan(&it.ID, &it.Title, &it.Price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return it, nil
}

func (r *itemRepo) BundleBookIDs(ctx context.Context, tx repository.Tx, bundleID string) ([]string, error) {
	const q = `SELECT book_id FROM bundle_books WHERE bundle_id=$1 ORDER BY book_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, bundleID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	return ids, nil
}
