package repository

import (
	"context"

	"bookstore-payments/internal/domain/model"
)

type SubmissionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PaymentSubmission) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentSubmission, error)
	ListByPurchase(ctx context.Context, tx Tx, purchaseID string) ([]*model.PaymentSubmission, error)
	// UpdateStatus is an admin-only transition; submissions are never deleted.
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.SubmissionStatus) error
}
