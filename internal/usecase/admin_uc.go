// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"bookstore-payments/internal/domain"
	"bookstore-payments/internal/domain/model"
	"bookstore-payments/internal/domain/ports/repository"
	"bookstore-payments/internal/infra/metrics"
)

// Compile-time check
var _ AdminUseCase = (*adminUC)(nil)

// AdminUseCase is the review surface: a paginated FIFO queue plus the
// verify/reject actions. Every entry point re-checks the admin role and fails
// closed; ambiguity in the principal is Forbidden, never Allow.
type AdminUseCase interface {
	ListPending(ctx context.Context, caller model.Principal, page, limit int) ([]*model.Purchase, int, error)
	Verify(ctx context.Context, caller model.Principal, purchaseID string, approve bool, notes *string) (*model.Purchase, error)
	ReviewSubmissions(ctx context.Context, caller model.Principal, purchaseID string) ([]*model.PaymentSubmission, error)
}

type adminUC struct {
	workflow PurchaseUseCase
	repo     repository.PurchaseRepository
	log      *zerolog.Logger
}

func NewAdminUseCase(workflow PurchaseUseCase, repo repository.PurchaseRepository, logger *zerolog.Logger) *adminUC {
	return &adminUC{workflow: workflow, repo: repo, log: logger}
}

func (u *adminUC) requireAdmin(caller model.Principal) error {
	if !caller.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (u *adminUC) ListPending(ctx context.Context, caller model.Principal, page, limit int) ([]*model.Purchase, int, error) {
	if err := u.requireAdmin(caller); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, total, err := u.repo.ListPending(ctx, repository.NoTX, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	metrics.SetPendingReview(total)
	return list, total, nil
}

func (u *adminUC) Verify(ctx context.Context, caller model.Principal, purchaseID string, approve bool, notes *string) (*model.Purchase, error) {
	if err := u.requireAdmin(caller); err != nil {
		return nil, err
	}
	return u.workflow.AdminVerify(ctx, purchaseID, caller.UserID, approve, notes)
}

func (u *adminUC) ReviewSubmissions(ctx context.Context, caller model.Principal, purchaseID string) ([]*model.PaymentSubmission, error) {
	if err := u.requireAdmin(caller); err != nil {
		return nil, err
	}
	return u.workflow.ListSubmissions(ctx, purchaseID)
}
