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

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	const q = `SELECT user_id, display_name, email, role, created_at FROM profiles WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	p := &model.Profile{}
	if err := row.Scan(&p.UserID, &p.DisplayName, &p.Email, &p.Role, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if p.Role == "" {
		p.Role = model.RoleUser
	}
	return p, nil
}

// FindRole treats a missing profile as a plain user, not an error. Role
// ambiguity must fail closed, so read errors still propagate.
func (r *profileRepo) FindRole(ctx context.Context, tx repository.Tx, userID string) (model.Role, error) {
	p, err := r.FindByUserID(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	return p.Role, nil
}
