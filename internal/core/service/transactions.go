package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rl1809/inventory/internal/core/domain"
)

// TransactionResult is the outcome of a processed transaction. Applied is false when the
// movement was refused because it would have driven stock negative; the transaction is
// recorded either way.
type TransactionResult struct {
	Transaction domain.Transaction
	Stock       int
	Applied     bool
}

// TransactionFilter selects transactions by kind and by an inclusive time range.
// Zero values leave the corresponding criterion open.
type TransactionFilter struct {
	Kind domain.TransactionKind
	From *time.Time
	To   *time.Time
}

func (f TransactionFilter) matches(t domain.Transaction) bool {
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.From != nil && t.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

// ProcessTransaction applies the movement to the referenced product, persists the
// resulting stock, persists the transaction and indexes it under the store-assigned id.
// The coordinator's clock stamps OccurredAt; any caller-supplied time is discarded.
//
// An EXIT larger than the current stock leaves stock untouched but still goes through
// persistence; the result reports Applied=false. If the stock write fails nothing changes
// in memory. If the stock write succeeds but the transaction insert fails, memory takes
// the stock the store now holds and the transaction is not indexed.
func (c *Coordinator) ProcessTransaction(ctx context.Context, t domain.Transaction) (TransactionResult, error) {
	t.ProductCode = strings.TrimSpace(t.ProductCode)
	if t.ProductCode == "" {
		return TransactionResult{}, ErrInvalidTransaction
	}
	kind, err := domain.ParseTransactionKind(string(t.Kind))
	if err != nil {
		return TransactionResult{}, errors.Join(ErrInvalidTransaction, err)
	}
	t.ID = 0
	t.Kind = kind
	t.Quantity = max(t.Quantity, 0)
	t.OccurredAt = c.now()

	result, err := c.processTransaction(ctx, t)
	if err != nil {
		return TransactionResult{}, err
	}

	if c.events != nil {
		if err := c.events.PublishTransaction(ctx, result.Transaction, result.Stock); err != nil {
			c.logger.Warn().Err(err).Int64("transaction_id", result.Transaction.ID).Msg("failed to publish transaction")
		}
	}
	return result, nil
}

func (c *Coordinator) processTransaction(ctx context.Context, t domain.Transaction) (TransactionResult, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	product, ok := c.FindProduct(t.ProductCode)
	if !ok {
		return TransactionResult{}, ErrProductNotFound
	}

	applied := true
	if err := t.ApplyTo(&product); err != nil {
		applied = false
		c.logger.Warn().Err(err).
			Str("code", product.Code).
			Int("stock", product.Stock).
			Int("quantity", t.Quantity).
			Msg("stock movement rejected")
	}

	sctx, cancel := c.storeCtx(ctx)
	defer cancel()

	if err := c.store.UpdateProductStock(sctx, product.Code, product.Stock); err != nil {
		c.logger.Error().Err(err).Str("code", product.Code).Msg("failed to persist stock")
		return TransactionResult{}, storeError("update product stock", err)
	}

	saved, err := c.store.SaveTransaction(sctx, t)
	if err != nil {
		c.logger.Error().Err(err).Str("code", product.Code).Msg("failed to persist transaction")
		c.setStock(product.Code, product.Stock)
		return TransactionResult{}, storeError("save transaction", err)
	}

	c.mu.Lock()
	if p, ok := c.products[product.Code]; ok {
		p.Stock = product.Stock
		c.products[product.Code] = p
	}
	if _, seen := c.transactions[saved.ID]; !seen {
		c.txOrder = append(c.txOrder, saved.ID)
	}
	c.transactions[saved.ID] = saved
	c.mu.Unlock()

	c.logger.Info().Int64("transaction_id", saved.ID).Str("code", product.Code).Bool("applied", applied).Msg("transaction processed")
	return TransactionResult{Transaction: saved, Stock: product.Stock, Applied: applied}, nil
}

func (c *Coordinator) setStock(code string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.products[code]; ok {
		p.Stock = stock
		c.products[code] = p
	}
}

func (c *Coordinator) FindTransaction(id int64) (domain.Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.transactions[id]
	return t, ok
}

// ListTransactions returns every indexed transaction in the order it was indexed.
func (c *Coordinator) ListTransactions() []domain.Transaction {
	return c.FilterTransactions(TransactionFilter{})
}

func (c *Coordinator) FilterTransactions(f TransactionFilter) []domain.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(c.txOrder))
	for _, id := range c.txOrder {
		t := c.transactions[id]
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out
}
