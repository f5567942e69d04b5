package repository

import (
	"context"

	"bookstore-payments/internal/domain/model"
)

// ItemRepository is a read-through to the catalog store. Purchase amounts are
// snapshotted at creation time; nothing here is consulted afterwards.
type ItemRepository interface {
	FindByTypeAndID(ctx context.Context, tx Tx, itemType model.ItemType, id string) (*model.Item, error)
	// BundleBookIDs lists the constituent books of a bundle.
	BundleBookIDs(ctx context.Context, tx Tx, bundleID string) ([]string, error)
}
