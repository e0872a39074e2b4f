package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewDurable_Clamps(t *testing.T) {
	p := NewDurable("P1", "Drill", decimal.NewFromInt(-3), -7, nil, "tools", -2)

	assert.True(t, p.UnitPrice.IsZero())
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 0, p.WarrantyMonths)
	assert.Equal(t, ProductKindDurable, p.Kind)
}

func TestMove_RejectsNegativeStock(t *testing.T) {
	p := NewDurable("P1", "Drill", decimal.NewFromInt(1), 3, nil, "", 0)

	assert.ErrorIs(t, p.Move(-4), ErrInsufficientStock)
	assert.Equal(t, 3, p.Stock)

	assert.NoError(t, p.Move(-3))
	assert.Equal(t, 0, p.Stock)
}

func TestExpired_UsesCalendarDays(t *testing.T) {
	// late evening must not push "today" into tomorrow
	now := time.Date(2026, time.June, 10, 23, 59, 0, 0, time.UTC)
	p := NewPerishable("M1", "Milk", decimal.NewFromInt(2), 4, nil, time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC), true)

	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(time.Minute)))
	assert.Equal(t, 0, p.DaysUntilExpiry(now))
}

func TestValuation(t *testing.T) {
	now := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)
	price := decimal.RequireFromString("2.50")

	durable := NewDurable("D1", "Chair", price, 4, nil, "", 24)
	assert.Equal(t, "10", durable.Valuation(now).String())

	fresh := NewPerishable("M1", "Milk", price, 4, nil, now.AddDate(0, 0, 1), false)
	assert.Equal(t, "10", fresh.Valuation(now).String())

	spoiled := NewPerishable("M2", "Milk", price, 4, nil, now.AddDate(0, 0, -1), false)
	assert.True(t, spoiled.Valuation(now).IsZero())
}

func TestNearExpiry(t *testing.T) {
	now := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)

	in := NewPerishable("A", "A", decimal.NewFromInt(1), 1, nil, now.AddDate(0, 0, NearExpiryWindowDays), false)
	out := NewPerishable("B", "B", decimal.NewFromInt(1), 1, nil, now.AddDate(0, 0, NearExpiryWindowDays+1), false)
	gone := NewPerishable("C", "C", decimal.NewFromInt(1), 1, nil, now.AddDate(0, 0, -1), false)

	assert.True(t, in.NearExpiry(now))
	assert.False(t, out.NearExpiry(now))
	assert.False(t, gone.NearExpiry(now))
	assert.False(t, NewDurable("D", "D", decimal.NewFromInt(1), 1, nil, "", 0).NearExpiry(now))
}

func TestClone_DetachesSupplier(t *testing.T) {
	p := NewDurable("P1", "Drill", decimal.NewFromInt(1), 1, &Supplier{TaxID: "S1", LegalName: "Acme"}, "", 0)
	c := p.Clone()
	c.Supplier.LegalName = "Other"

	assert.Equal(t, "Acme", p.Supplier.LegalName)
	assert.True(t, p.Supplier.Equal(c.Supplier))
}

func TestTransaction(t *testing.T) {
	tx := NewTransaction(TransactionKindExit, -5, "P1", TransactionDetails{CustomerRef: "C1"})
	assert.Equal(t, 0, tx.Quantity)
	assert.False(t, tx.OccurredAt.IsZero())
	assert.False(t, tx.Persisted())

	tx = NewTransaction(TransactionKindExit, 5, "P1", TransactionDetails{})
	assert.Equal(t, -5, tx.StockDelta())

	kind, err := ParseTransactionKind(" entry ")
	assert.NoError(t, err)
	assert.Equal(t, TransactionKindEntry, kind)

	_, err = ParseTransactionKind("refund")
	assert.Error(t, err)
}
