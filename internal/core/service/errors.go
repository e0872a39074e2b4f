package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSupplier     = errors.New("invalid supplier")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrDuplicateProduct    = errors.New("product already registered")
	ErrProductExpired      = errors.New("product already expired")
	ErrProductNotFound     = errors.New("product not found")
	ErrSupplierNotFound    = errors.New("supplier not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStore               = errors.New("store unavailable")
	ErrSnapshot            = errors.New("snapshot unavailable")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
