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

var _ repository.PaymentRequestRepository = (*paymentRequestRepo)(nil)

type paymentRequestRepo struct{ pool *pgxpool.Pool }

func NewPaymentRequestRepo(pool *pgxpool.Pool) *paymentRequestRepo {
	return &paymentRequestRepo{pool: pool}
}

const paymentRequestColumns = `id, user_id, item_type, item_id, contact, note, status, created_at, updated_at`

func scanPaymentRequest(row pgx.Row) (*model.PaymentRequest, error) {
	pr := &model.PaymentRequest{}
	if err := row.Scan(&pr.ID, &pr.UserID, &pr.ItemType, &pr.ItemID, &pr.Contact, &pr.Note, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return pr, nil
}

func (r *paymentRequestRepo) Save(ctx context.Context, tx repository.Tx, pr *model.PaymentRequest) error {
	const q = `
INSERT INTO payment_requests (id, user_id, item_type, item_id, contact, note, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  contact=$5, note=$6, status=$7, updated_at=$9;`
	_, err := execSQL(ctx, r.pool, tx, q, pr.ID, pr.UserID, pr.ItemType, pr.ItemID, pr.Contact, pr.Note, pr.Status, pr.CreatedAt, pr.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	const q = `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPaymentRequest(row)
}

func (r *paymentRequestRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentRequestStatus, offset, limit int) ([]*model.PaymentRequest, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	countRow, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payment_requests WHERE status=$1;`, status)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	const q = `SELECT ` + paymentRequestColumns + ` FROM payment_requests
WHERE status=$1
ORDER BY created_at ASC
OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, status, offset, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, 0, err
		}
		return nil, 0, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentRequest
	for rows.Next() {
		pr, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, pr)
	}
	return out, total, nil
}

func (r *paymentRequestRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentRequestStatus) (bool, error) {
	const q = `UPDATE payment_requests SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}
