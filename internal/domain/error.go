package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("status precondition failed")
	ErrDuplicatePurchase = errors.New("active purchase already exists for item")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrFreeItem          = errors.New("free items are granted directly, not purchased")
	ErrConfiguration     = errors.New("missing required configuration")
	ErrDependency        = errors.New("downstream dependency failed")

	// Infrastructure errors surfaced by repositories
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")
)
