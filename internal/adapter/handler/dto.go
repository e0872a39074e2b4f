package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/core/service"
)

const dateLayout = "2006-01-02"

// localTimeLayout is the timestamp form the web dashboard sends for filter bounds.
const localTimeLayout = "2006-01-02T15:04:05"

type ProductRequest struct {
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	UnitPrice      decimal.Decimal  `json:"unitPrice"`
	Stock          int              `json:"stock"`
	Kind           string           `json:"kind"`
	Category       string           `json:"category"`
	WarrantyMonths int              `json:"warrantyMonths"`
	ExpiresOn      string           `json:"expiresOn"`
	Refrigerated   bool             `json:"refrigerated"`
	SupplierTaxID  string           `json:"supplierTaxId"`
	Supplier       *domain.Supplier `json:"supplier"`
}

func (r ProductRequest) toProduct() (domain.Product, error) {
	supplier := r.Supplier
	if supplier == nil && r.SupplierTaxID != "" {
		supplier = &domain.Supplier{TaxID: r.SupplierTaxID}
	}

	switch domain.ProductKind(strings.ToLower(strings.TrimSpace(r.Kind))) {
	case "", domain.ProductKindDurable:
		return domain.NewDurable(r.Code, r.Name, r.UnitPrice, r.Stock, supplier, r.Category, r.WarrantyMonths), nil
	case domain.ProductKindPerishable:
		expiresOn, err := parseDate(r.ExpiresOn)
		if err != nil {
			return domain.Product{}, errors.Join(service.ErrInvalidProduct, err)
		}
		p := domain.NewPerishable(r.Code, r.Name, r.UnitPrice, r.Stock, supplier, expiresOn, r.Refrigerated)
		p.Category = r.Category
		return p, nil
	}
	return domain.Product{}, fmt.Errorf("%w: unknown kind %q", service.ErrInvalidProduct, r.Kind)
}

// ProductUpdateRequest carries the fields a product update may change.
type ProductUpdateRequest struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Stock     int             `json:"stock"`
}

func (r ProductUpdateRequest) applyTo(p *domain.Product) {
	p.Name = r.Name
	p.SetUnitPrice(r.UnitPrice)
	p.SetStock(r.Stock)
}

type TransactionRequest struct {
	Kind        string `json:"kind"`
	Quantity    int    `json:"quantity"`
	ProductCode string `json:"productCode"`
	Reason      string `json:"reason"`
	Note        string `json:"note"`
	User        string `json:"user"`
	SupplierRef string `json:"supplierRef"`
	CustomerRef string `json:"customerRef"`
}

func (r TransactionRequest) toTransaction() (domain.Transaction, error) {
	kind, err := domain.ParseTransactionKind(r.Kind)
	if err != nil {
		return domain.Transaction{}, errors.Join(service.ErrInvalidTransaction, err)
	}

	return domain.NewTransaction(kind, r.Quantity, r.ProductCode, domain.TransactionDetails{
		Reason:      r.Reason,
		Note:        r.Note,
		User:        r.User,
		SupplierRef: r.SupplierRef,
		CustomerRef: r.CustomerRef,
	}), nil
}

type TransactionResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Stock       int                `json:"stock"`
	Applied     bool               `json:"applied"`
}

type ValuationResponse struct {
	Total decimal.Decimal `json:"total"`
	AsOf  string          `json:"asOf"`
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// parseBound accepts a dashboard-style local timestamp or RFC3339. Empty means unbounded.
func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(localTimeLayout, s, time.Local); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid time bound %q", s)
	}
	return &t, nil
}

func parseFilter(kind, from, to string) (service.TransactionFilter, error) {
	var (
		f   service.TransactionFilter
		err error
	)
	if strings.TrimSpace(kind) != "" {
		if f.Kind, err = domain.ParseTransactionKind(kind); err != nil {
			return f, err
		}
	}
	if f.From, err = parseBound(from); err != nil {
		return f, err
	}
	if f.To, err = parseBound(to); err != nil {
		return f, err
	}
	return f, nil
}
