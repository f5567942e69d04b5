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

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, item_type, item_id, amount, currency, transaction_ref, initiation_token, status, provider_ref, telegram_chat_id, telegram_user_id, created_at, updated_at, reviewer_notes, reviewed_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	p := &model.Purchase{}
	if err := row.Scan(&p.ID, &p.UserID, &p.ItemType, &p.ItemID, &p.Amount, &p.Currency, &p.TransactionRef, &p.InitiationToken, &p.Status, &p.ProviderRef, &p.TelegramChatID, &p.TelegramUserID, &p.CreatedAt, &p.UpdatedAt, &p.ReviewerNotes, &p.ReviewedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *purchaseRepo) Create(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (
  id, user_id, item_type, item_id, amount, currency, transaction_ref, initiation_token, status, provider_ref, telegram_chat_id, telegram_user_id, created_at, updated_at, reviewer_notes, reviewed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
);`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.ItemType, p.ItemID, p.Amount, p.Currency, p.TransactionRef, p.InitiationToken,
		p.Status, p.ProviderRef, p.TelegramChatID, p.TelegramUserID, p.CreatedAt, p.UpdatedAt, p.ReviewerNotes, p.ReviewedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "purchases_active_user_item_idx"):
			return domain.ErrDuplicatePurchase
		case isUniqueViolation(err, ""):
			// transaction_ref or initiation_token collision; caller regenerates
			return domain.ErrAlreadyExists
		case err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *purchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM purchases WHERE transaction_ref=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM purchases WHERE initiation_token=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, token)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindActiveByUserAndItem(ctx context.Context, tx repository.Tx, userID string, itemType model.ItemType, itemID string) (*model.Purchase, error) {
	const q = `SELECT ` + purchaseColumns + ` FROM purchases
WHERE user_id=$1 AND item_type=$2 AND item_id=$3 AND status NOT IN ('completed','rejected')
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, itemType, itemID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

// UpdateStatusIf is the single race-safe transition primitive: one conditional
// UPDATE keyed on the current status, never a read-then-write pair.
func (r *purchaseRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PurchaseStatus, fields *repository.StatusFields) (bool, error) {
	if fields == nil {
		fields = &repository.StatusFields{}
	}
	const q = `
UPDATE purchases
   SET status = $3,
       provider_ref = COALESCE($4, provider_ref),
       telegram_chat_id = COALESCE($5, telegram_chat_id),
       telegram_user_id = COALESCE($6, telegram_user_id),
       reviewer_notes = COALESCE($7, reviewer_notes),
       reviewed_at = COALESCE($8, reviewed_at),
       updated_at = NOW()
 WHERE id = $1
   AND status = $2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, from, to,
		fields.ProviderRef, fields.TelegramChatID, fields.TelegramUserID, fields.ReviewerNotes, fields.ReviewedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *purchaseRepo) ListPending(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Purchase, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	countRow, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM purchases WHERE status='pending_verification';`)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	// Oldest first: the review queue is FIFO.
	const q = `SELECT ` + purchaseColumns + ` FROM purchases
WHERE status='pending_verification'
ORDER BY created_at ASC
OFFSET $1 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, offset, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, 0, err
		}
		return nil, 0, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT ` + purchaseColumns + ` FROM purchases
WHERE user_id=$1
ORDER BY created_at DESC
OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
