package port

import (
	"context"

	"github.com/rl1809/inventory/internal/core/domain"
)

type SnapshotStore interface {
	// Save replaces any previous snapshot with the given product index
	Save(ctx context.Context, products map[string]domain.Product) error

	// Load returns the last saved index; found is false when no snapshot exists
	Load(ctx context.Context) (products map[string]domain.Product, found bool, err error)
}
