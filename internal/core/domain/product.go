package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// NearExpiryWindowDays is how far ahead the near-expiry report looks.
const NearExpiryWindowDays = 30

type ProductKind string

const (
	ProductKindDurable    ProductKind = "durable"
	ProductKindPerishable ProductKind = "perishable"
)

// Product is a stocked item. Kind selects which of the variant fields carry meaning:
// ExpiresOn and Refrigerated for perishables, WarrantyMonths for durables.
type Product struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Stock          int             `json:"stock"`
	Supplier       *Supplier       `json:"supplier,omitempty"`
	Category       string          `json:"category,omitempty"`
	Kind           ProductKind     `json:"kind"`
	WarrantyMonths int             `json:"warrantyMonths,omitempty"`
	ExpiresOn      time.Time       `json:"expiresOn,omitzero"`
	Refrigerated   bool            `json:"refrigerated,omitempty"`
}

// NewDurable builds a durable product, clamping negative price, stock and warranty to zero.
func NewDurable(code, name string, price decimal.Decimal, stock int, supplier *Supplier, category string, warrantyMonths int) Product {
	p := newProduct(code, name, price, stock, supplier)
	p.Kind = ProductKindDurable
	p.Category = category
	p.WarrantyMonths = max(warrantyMonths, 0)
	return p
}

// NewPerishable builds a perishable product. Only the calendar date of expiresOn is kept.
func NewPerishable(code, name string, price decimal.Decimal, stock int, supplier *Supplier, expiresOn time.Time, refrigerated bool) Product {
	p := newProduct(code, name, price, stock, supplier)
	p.Kind = ProductKindPerishable
	p.ExpiresOn = CalendarDate(expiresOn)
	p.Refrigerated = refrigerated
	return p
}

func newProduct(code, name string, price decimal.Decimal, stock int, supplier *Supplier) Product {
	p := Product{
		Code:     code,
		Name:     name,
		Stock:    max(stock, 0),
		Supplier: supplier.Clone(),
	}
	p.SetUnitPrice(price)
	return p
}

func (p *Product) SetUnitPrice(price decimal.Decimal) {
	if price.IsNegative() {
		price = decimal.Zero
	}
	p.UnitPrice = price
}

func (p *Product) SetStock(stock int) {
	p.Stock = max(stock, 0)
}

func (p *Product) SetWarrantyMonths(months int) {
	p.WarrantyMonths = max(months, 0)
}

// Move shifts stock by delta. A movement that would leave stock negative is
// rejected and stock is left untouched.
func (p *Product) Move(delta int) error {
	next := p.Stock + delta
	if next < 0 {
		return ErrInsufficientStock
	}
	p.Stock = next
	return nil
}

func (p Product) IsPerishable() bool {
	return p.Kind == ProductKindPerishable
}

// Expired reports whether a perishable's expiration date lies strictly before today.
// Expiring today is not expired. Durables never expire.
func (p Product) Expired(now time.Time) bool {
	if !p.IsPerishable() || p.ExpiresOn.IsZero() {
		return false
	}
	return p.DaysUntilExpiry(now) < 0
}

// DaysUntilExpiry counts whole calendar days from today to the expiration date.
func (p Product) DaysUntilExpiry(now time.Time) int {
	return int(CalendarDate(p.ExpiresOn).Sub(CalendarDate(now)).Hours() / 24)
}

// NearExpiry reports a perishable that has not expired and expires within the window,
// the last day of the window included.
func (p Product) NearExpiry(now time.Time) bool {
	if !p.IsPerishable() || p.ExpiresOn.IsZero() || p.Expired(now) {
		return false
	}
	return p.DaysUntilExpiry(now) <= NearExpiryWindowDays
}

// Valuation is the product's contribution to inventory value: price times stock,
// or zero for an expired perishable.
func (p Product) Valuation(now time.Time) decimal.Decimal {
	stockValue := p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Stock)))
	switch p.Kind {
	case ProductKindPerishable:
		if p.Expired(now) {
			return decimal.Zero
		}
		return stockValue
	default:
		return stockValue
	}
}

// SupplierTaxID returns the owning supplier's tax id, or "" when unset.
func (p Product) SupplierTaxID() string {
	if p.Supplier == nil {
		return ""
	}
	return p.Supplier.TaxID
}

func (p Product) HasCode() bool {
	return strings.TrimSpace(p.Code) != ""
}

// Clone returns a copy that shares no memory with p.
func (p Product) Clone() Product {
	p.Supplier = p.Supplier.Clone()
	return p
}

// CalendarDate strips the clock from t, keeping its year, month and day as a UTC midnight.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
