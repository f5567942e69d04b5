package repository

import (
	"context"

	"bookstore-payments/internal/domain/model"
)

type ProfileRepository interface {
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Profile, error)
	// FindRole resolves the user's role; an absent profile yields RoleUser,
	// not an error.
	FindRole(ctx context.Context, tx Tx, userID string) (model.Role, error)
}
