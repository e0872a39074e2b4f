package handler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/core/service"
)

var today = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

// memStore is an in-memory StoreGateway
type memStore struct {
	mu           sync.Mutex
	products     map[string]domain.Product
	suppliers    map[string]domain.Supplier
	transactions []domain.Transaction
	nextID       int64

	pingErr            error
	saveTransactionErr error
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[string]domain.Product),
		suppliers: make(map[string]domain.Supplier),
	}
}

func (m *memStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *memStore) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transaction(nil), m.transactions...), nil
}

func (m *memStore) SaveProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.Code] = p.Clone()
	return nil
}

func (m *memStore) UpdateProductStock(ctx context.Context, code string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[code]; ok {
		p.Stock = quantity
		m.products[code] = p
	}
	return nil
}

func (m *memStore) SaveSupplier(ctx context.Context, s domain.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppliers[s.TaxID] = s
	return nil
}

func (m *memStore) SaveTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveTransactionErr != nil {
		return domain.Transaction{}, m.saveTransactionErr
	}
	m.nextID++
	t.ID = m.nextID
	m.transactions = append(m.transactions, t)
	return t, nil
}

func (m *memStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *memStore) setPingErr(err error) {
	m.mu.Lock()
	m.pingErr = err
	m.mu.Unlock()
}

func (m *memStore) stockOf(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[code].Stock
}

// seededCoordinator has supplier S1, durable D1 (stock 5, 10.00) and
// perishable M1 (stock 20, 2.50, expiring in 10 days).
func seededCoordinator(store *memStore) *service.Coordinator {
	ctx := context.Background()
	coord := service.NewCoordinator(store, zerolog.Nop(), service.WithClock(func() time.Time { return today }))

	supplier := domain.Supplier{TaxID: "S1", LegalName: "Acme"}
	if err := coord.RegisterSupplier(ctx, supplier); err != nil {
		panic(err)
	}
	if err := coord.RegisterProduct(ctx, domain.NewDurable("D1", "Drill", decimal.RequireFromString("10.00"), 5, &supplier, "tools", 24)); err != nil {
		panic(err)
	}
	if err := coord.RegisterProduct(ctx, domain.NewPerishable("M1", "Milk", decimal.RequireFromString("2.50"), 20, &supplier, today.AddDate(0, 0, 10), true)); err != nil {
		panic(err)
	}
	return coord
}
