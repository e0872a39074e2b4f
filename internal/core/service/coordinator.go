package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/port"
)

const defaultStoreTimeout = 5 * time.Second

// Coordinator holds the working set of products, suppliers and transactions in memory
// and keeps it in step with the store. Every mutation is persisted before it is indexed,
// so the indexes never show a write the store rejected.
//
// Mutations are serialized by writeMu, which is held across store calls. The indexes
// themselves are guarded by mu and only locked while they are read or swapped, so reads
// never wait on the store.
type Coordinator struct {
	store     port.StoreGateway
	snapshots port.SnapshotStore
	events    port.EventPublisher
	logger    zerolog.Logger
	now       func() time.Time

	storeTimeout time.Duration

	writeMu sync.Mutex

	mu           sync.RWMutex
	products     map[string]domain.Product
	suppliers    map[string]domain.Supplier
	transactions map[int64]domain.Transaction
	txOrder      []int64
}

type Option func(*Coordinator)

func WithSnapshotStore(s port.SnapshotStore) Option {
	return func(c *Coordinator) { c.snapshots = s }
}

func WithEventPublisher(p port.EventPublisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// WithClock replaces time.Now as the source of "today" for expiry rules.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithStoreTimeout bounds every store call. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.storeTimeout = d }
}

func NewCoordinator(store port.StoreGateway, logger zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		logger:       logger.With().Str("component", "coordinator").Logger(),
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
		products:     make(map[string]domain.Product),
		suppliers:    make(map[string]domain.Supplier),
		transactions: make(map[int64]domain.Transaction),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.storeTimeout)
}

// Bootstrap loads all three indexes from the store. When products cannot be fetched
// and a snapshot store is configured, the product index is restored from the snapshot.
// Load failures are logged and returned for information only; the coordinator keeps
// serving whatever it managed to load.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	productsErr := c.loadProducts(ctx)
	err := errors.Join(productsErr, c.loadSuppliers(ctx), c.loadTransactions(ctx))
	if productsErr != nil && c.snapshots != nil {
		c.restoreFromSnapshot(ctx)
	}
	return err
}

// Load fetches products, suppliers and transactions independently. An index whose
// fetch fails keeps its current content.
func (c *Coordinator) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return errors.Join(c.loadProducts(ctx), c.loadSuppliers(ctx), c.loadTransactions(ctx))
}

func (c *Coordinator) loadProducts(ctx context.Context) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	products, err := c.store.ListProducts(sctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load products")
		return storeError("list products", err)
	}

	index := make(map[string]domain.Product, len(products))
	for _, p := range products {
		index[p.Code] = p.Clone()
	}

	c.mu.Lock()
	c.products = index
	c.mu.Unlock()

	c.logger.Info().Int("count", len(index)).Msg("products loaded")
	return nil
}

func (c *Coordinator) loadSuppliers(ctx context.Context) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	suppliers, err := c.store.ListSuppliers(sctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load suppliers")
		return storeError("list suppliers", err)
	}

	index := make(map[string]domain.Supplier, len(suppliers))
	for _, s := range suppliers {
		index[s.TaxID] = s
	}

	c.mu.Lock()
	c.suppliers = index
	c.mu.Unlock()

	c.logger.Info().Int("count", len(index)).Msg("suppliers loaded")
	return nil
}

func (c *Coordinator) loadTransactions(ctx context.Context) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	transactions, err := c.store.ListTransactions(sctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load transactions")
		return storeError("list transactions", err)
	}

	index := make(map[int64]domain.Transaction, len(transactions))
	order := make([]int64, 0, len(transactions))
	for _, t := range transactions {
		if !t.Persisted() {
			c.logger.Warn().Str("code", t.ProductCode).Msg("skipping transaction without id")
			continue
		}
		if _, seen := index[t.ID]; !seen {
			order = append(order, t.ID)
		}
		index[t.ID] = t
	}

	c.mu.Lock()
	c.transactions = index
	c.txOrder = order
	c.mu.Unlock()

	c.logger.Info().Int("count", len(index)).Msg("transactions loaded")
	return nil
}

// SaveSnapshot writes the whole product index to the snapshot store, replacing the previous snapshot.
func (c *Coordinator) SaveSnapshot(ctx context.Context) error {
	if c.snapshots == nil {
		return fmt.Errorf("%w: no snapshot store configured", ErrSnapshot)
	}

	c.mu.RLock()
	products := make(map[string]domain.Product, len(c.products))
	for code, p := range c.products {
		products[code] = p.Clone()
	}
	c.mu.RUnlock()

	if err := c.snapshots.Save(ctx, products); err != nil {
		c.logger.Error().Err(err).Msg("failed to save snapshot")
		return fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	c.logger.Info().Int("count", len(products)).Msg("snapshot saved")
	return nil
}

// RestoreFromSnapshot replaces the product index with the saved snapshot, if one exists.
// An unreadable snapshot clears the product index. It reports whether a snapshot was applied.
func (c *Coordinator) RestoreFromSnapshot(ctx context.Context) bool {
	if c.snapshots == nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.restoreFromSnapshot(ctx)
}

func (c *Coordinator) restoreFromSnapshot(ctx context.Context) bool {
	products, found, err := c.snapshots.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("snapshot unreadable, starting with an empty product index")
		c.mu.Lock()
		c.products = make(map[string]domain.Product)
		c.mu.Unlock()
		return false
	}
	if !found {
		return false
	}

	index := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if !p.HasCode() {
			continue
		}
		index[p.Code] = p.Clone()
	}

	c.mu.Lock()
	c.products = index
	c.mu.Unlock()

	c.logger.Info().Int("count", len(index)).Msg("products restored from snapshot")
	return true
}

// CheckStore pings the store within the store timeout.
func (c *Coordinator) CheckStore(ctx context.Context) error {
	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.Ping(sctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

// RegisterSupplier persists the supplier and indexes it by tax id, replacing any
// supplier already indexed under that id.
func (c *Coordinator) RegisterSupplier(ctx context.Context, supplier domain.Supplier) error {
	if !supplier.Valid() {
		return ErrInvalidSupplier
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.SaveSupplier(sctx, supplier); err != nil {
		c.logger.Error().Err(err).Str("tax_id", supplier.TaxID).Msg("failed to register supplier")
		return storeError("save supplier", err)
	}

	c.mu.Lock()
	c.suppliers[supplier.TaxID] = supplier
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) FindSupplier(taxID string) (domain.Supplier, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.suppliers[taxID]
	return s, ok
}

func (c *Coordinator) ListSuppliers() []domain.Supplier {
	c.mu.RLock()
	out := make([]domain.Supplier, 0, len(c.suppliers))
	for _, s := range c.suppliers {
		out = append(out, s)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Supplier) int { return cmp.Compare(a.TaxID, b.TaxID) })
	return out
}

// RemoveSupplier drops the supplier from memory only; the store keeps its row.
func (c *Coordinator) RemoveSupplier(taxID string) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.suppliers[taxID]; !ok {
		return false
	}
	delete(c.suppliers, taxID)
	return true
}

// RegisterProduct persists and indexes a new product. Existing codes are never
// overwritten and already-expired perishables are refused.
func (c *Coordinator) RegisterProduct(ctx context.Context, product domain.Product) error {
	if !product.HasCode() || !product.Supplier.Valid() {
		return ErrInvalidProduct
	}
	product = normalizeProduct(product)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, exists := c.FindProduct(product.Code); exists {
		return ErrDuplicateProduct
	}
	if product.Expired(c.now()) {
		return ErrProductExpired
	}
	if s, ok := c.FindSupplier(product.Supplier.TaxID); ok {
		product.Supplier = &s
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.SaveProduct(sctx, product); err != nil {
		c.logger.Error().Err(err).Str("code", product.Code).Msg("failed to register product")
		return storeError("save product", err)
	}

	c.mu.Lock()
	c.products[product.Code] = product
	c.mu.Unlock()
	return nil
}

// UpdateProduct replaces an indexed product. Only the stock reaches the store;
// the other fields change in memory alone.
func (c *Coordinator) UpdateProduct(ctx context.Context, product domain.Product) error {
	if !product.HasCode() {
		return ErrInvalidProduct
	}
	product = normalizeProduct(product)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, exists := c.FindProduct(product.Code); !exists {
		return ErrProductNotFound
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.UpdateProductStock(sctx, product.Code, product.Stock); err != nil {
		c.logger.Error().Err(err).Str("code", product.Code).Msg("failed to update product")
		return storeError("update product stock", err)
	}

	c.mu.Lock()
	c.products[product.Code] = product
	c.mu.Unlock()
	return nil
}

// RemoveProduct drops the product from memory only; the store keeps its row.
func (c *Coordinator) RemoveProduct(code string) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[code]; !ok {
		return false
	}
	delete(c.products, code)
	return true
}

// FindProduct returns a copy of the indexed product.
func (c *Coordinator) FindProduct(code string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[code]
	if !ok {
		return domain.Product{}, false
	}
	return p.Clone(), true
}

func (c *Coordinator) ListProducts() []domain.Product {
	c.mu.RLock()
	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Clone())
	}
	c.mu.RUnlock()

	sortByCode(out)
	return out
}

func (c *Coordinator) ProductNames() []string {
	products := c.ListProducts()
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

func normalizeProduct(p domain.Product) domain.Product {
	p = p.Clone()
	p.Code = strings.TrimSpace(p.Code)
	p.SetUnitPrice(p.UnitPrice)
	p.SetStock(p.Stock)
	p.SetWarrantyMonths(p.WarrantyMonths)
	if p.Kind == "" {
		p.Kind = domain.ProductKindDurable
	}
	if p.IsPerishable() && !p.ExpiresOn.IsZero() {
		p.ExpiresOn = domain.CalendarDate(p.ExpiresOn)
	}
	return p
}

func sortByCode(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int { return cmp.Compare(a.Code, b.Code) })
}
