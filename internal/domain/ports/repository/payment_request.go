package repository

import (
	"context"

	"bookstore-payments/internal/domain/model"
)

type PaymentRequestRepository interface {
	Save(ctx context.Context, tx Tx, r *model.PaymentRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRequest, error)
	ListByStatus(ctx context.Context, tx Tx, status model.PaymentRequestStatus, offset, limit int) ([]*model.PaymentRequest, int, error)
	// UpdateStatusIf mirrors the purchase conditional update.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.PaymentRequestStatus) (bool, error)
}
