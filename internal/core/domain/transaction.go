package domain

import (
	"fmt"
	"strings"
	"time"
)

type TransactionKind string

const (
	TransactionKindEntry TransactionKind = "ENTRY"
	TransactionKindExit  TransactionKind = "EXIT"
)

func ParseTransactionKind(s string) (TransactionKind, error) {
	switch k := TransactionKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case TransactionKindEntry, TransactionKindExit:
		return k, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// Transaction is a stock movement against one product. ID stays zero until the store assigns it.
type Transaction struct {
	ID          int64           `json:"id,omitempty"`
	Kind        TransactionKind `json:"kind"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Quantity    int             `json:"quantity"`
	ProductCode string          `json:"productCode"`
	Reason      string          `json:"reason,omitempty"`
	Note        string          `json:"note,omitempty"`
	User        string          `json:"user,omitempty"`
	SupplierRef string          `json:"supplierRef,omitempty"` // ENTRY only
	CustomerRef string          `json:"customerRef,omitempty"` // EXIT only
}

// TransactionDetails carries the optional descriptive fields of a movement.
type TransactionDetails struct {
	Reason      string
	Note        string
	User        string
	SupplierRef string
	CustomerRef string
}

// NewTransaction stamps the movement with the current time. Negative quantities become zero.
func NewTransaction(kind TransactionKind, quantity int, productCode string, details TransactionDetails) Transaction {
	return Transaction{
		Kind:        kind,
		OccurredAt:  time.Now(),
		Quantity:    max(quantity, 0),
		ProductCode: productCode,
		Reason:      details.Reason,
		Note:        details.Note,
		User:        details.User,
		SupplierRef: details.SupplierRef,
		CustomerRef: details.CustomerRef,
	}
}

// StockDelta is the signed change the movement applies to stock.
func (t Transaction) StockDelta() int {
	if t.Kind == TransactionKindExit {
		return -t.Quantity
	}
	return t.Quantity
}

// ApplyTo moves the product's stock by this transaction's delta.
func (t Transaction) ApplyTo(p *Product) error {
	return p.Move(t.StockDelta())
}

func (t Transaction) Persisted() bool {
	return t.ID != 0
}
