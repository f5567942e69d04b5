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

var _ repository.SubmissionRepository = (*submissionRepo)(nil)

type submissionRepo struct{ pool *pgxpool.Pool }

func NewSubmissionRepo(pool *pgxpool.Pool) *submissionRepo {
	return &submissionRepo{pool: pool}
}

const submissionColumns = `id, purchase_id, user_id, receipt_paths, claimed_amount, status, created_at, updated_at`

func scanSubmission(row pgx.Row) (*model.PaymentSubmission, error) {
	s := &model.PaymentSubmission{}
	if err := row.Scan(&s.ID, &s.PurchaseID, &s.UserID, &s.ReceiptPaths, &s.ClaimedAmount, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *submissionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error {
	const q = `
INSERT INTO manual_payment_submissions (
  id, purchase_id, user_id, receipt_paths, claimed_amount, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.PurchaseID, s.UserID, s.ReceiptPaths, s.ClaimedAmount, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *submissionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentSubmission, error) {
	const q = `SELECT ` + submissionColumns + ` FROM manual_payment_submissions WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubmission(row)
}

func (r *submissionRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.PaymentSubmission, error) {
	const q = `SELECT ` + submissionColumns + ` FROM manual_payment_submissions WHERE purchase_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, purchaseID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentSubmission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *submissionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus) error {
	const q = `UPDATE manual_payment_submissions SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status)
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
