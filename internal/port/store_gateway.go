package port

import (
	"context"

	"github.com/rl1809/inventory/internal/core/domain"
)

// StoreGateway is the durable copy of products, suppliers and transactions. It owns no business rules.
type StoreGateway interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	SaveProduct(ctx context.Context, product domain.Product) error

	// UpdateProductStock overwrites only the stock column of a product
	UpdateProductStock(ctx context.Context, code string, quantity int) error

	// SaveSupplier inserts the supplier or replaces the one with the same tax id
	SaveSupplier(ctx context.Context, supplier domain.Supplier) error

	// SaveTransaction inserts the transaction and returns it with its assigned ID
	SaveTransaction(ctx context.Context, transaction domain.Transaction) (domain.Transaction, error)

	Ping(ctx context.Context) error
}
