package port

import (
	"context"

	"github.com/rl1809/inventory/internal/core/domain"
)

type EventPublisher interface {
	// PublishTransaction announces a processed stock movement and the product's resulting stock
	PublishTransaction(ctx context.Context, transaction domain.Transaction, stock int) error
}
