package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory/internal/core/domain"
)

// TotalValuation sums every product's valuation as of today.
func (c *Coordinator) TotalValuation() decimal.Decimal {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	total := decimal.Zero
	for _, p := range c.products {
		total = total.Add(p.Valuation(now))
	}
	return total
}

// LowStock lists products whose stock is strictly below threshold.
func (c *Coordinator) LowStock(threshold int) []domain.Product {
	return c.selectProducts(func(p domain.Product) bool { return p.Stock < threshold })
}

// NearExpiry lists perishables that have not expired and expire within the next 30 days.
func (c *Coordinator) NearExpiry() []domain.Product {
	now := c.now()
	return c.selectProducts(func(p domain.Product) bool { return p.NearExpiry(now) })
}

func (c *Coordinator) selectProducts(keep func(domain.Product) bool) []domain.Product {
	c.mu.RLock()
	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	c.mu.RUnlock()

	sortByCode(out)
	return out
}

// Today is the coordinator's notion of the current time, used by adapters that render reports.
func (c *Coordinator) Today() time.Time {
	return c.now()
}
