package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/inventory/internal/adapter/storage/migrations"
	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/port"
)

var _ port.StoreGateway = (*MySQLStore)(nil)

var ErrMissingSupplier = errors.New("product has no supplier")

const tracerName = "github.com/rl1809/inventory/internal/adapter/storage"

// Migrate brings the schema up to date using the embedded goose migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type MySQLStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, tracer: otel.Tracer(tracerName)}
}

func (m *MySQLStore) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "mysql."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mysql"),
			attribute.String("db.operation", op),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (m *MySQLStore) Ping(ctx context.Context) (err error) {
	ctx, span := m.startSpan(ctx, "ping")
	defer func() { endSpan(span, err) }()

	return m.db.PingContext(ctx)
}

func (m *MySQLStore) ListProducts(ctx context.Context) (products []domain.Product, err error) {
	ctx, span := m.startSpan(ctx, "list_products")
	defer func() { endSpan(span, err) }()

	rows, err := m.db.QueryContext(ctx, `
		SELECT p.code, p.name, p.unit_price, p.stock, p.kind, p.expires_on, p.refrigerated,
		       p.category, p.warranty_months, p.supplier_tax_id,
		       COALESCE(s.legal_name, ''), COALESCE(s.contact, '')
		FROM products p
		LEFT JOIN suppliers s ON s.tax_id = p.supplier_tax_id
		ORDER BY p.code`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p            domain.Product
			s            domain.Supplier
			kind         string
			expiresOn    sql.NullTime
			refrigerated sql.NullBool
			category     sql.NullString
		)
		if err := rows.Scan(&p.Code, &p.Name, &p.UnitPrice, &p.Stock, &kind, &expiresOn, &refrigerated,
			&category, &p.WarrantyMonths, &s.TaxID, &s.LegalName, &s.Contact); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}

		p.Kind = domain.ProductKindDurable
		if domain.ProductKind(kind) == domain.ProductKindPerishable {
			p.Kind = domain.ProductKindPerishable
			if expiresOn.Valid {
				p.ExpiresOn = domain.CalendarDate(expiresOn.Time)
			}
			p.Refrigerated = refrigerated.Valid && refrigerated.Bool
		}
		p.Category = category.String
		p.Supplier = &s
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (m *MySQLStore) ListSuppliers(ctx context.Context) (suppliers []domain.Supplier, err error) {
	ctx, span := m.startSpan(ctx, "list_suppliers")
	defer func() { endSpan(span, err) }()

	rows, err := m.db.QueryContext(ctx, `SELECT tax_id, legal_name, contact FROM suppliers ORDER BY tax_id`)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.Supplier
		if err := rows.Scan(&s.TaxID, &s.LegalName, &s.Contact); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}
	return suppliers, nil
}

// ListTransactions returns transactions in id order. Rows referencing a product the
// store no longer knows are left out.
func (m *MySQLStore) ListTransactions(ctx context.Context) (transactions []domain.Transaction, err error) {
	ctx, span := m.startSpan(ctx, "list_transactions")
	defer func() { endSpan(span, err) }()

	rows, err := m.db.QueryContext(ctx, `
		SELECT t.id, t.kind, t.quantity, t.product_code, t.occurred_at, t.reason, t.note,
		       t.user_name, t.supplier_ref, t.customer_ref
		FROM stock_transactions t
		INNER JOIN products p ON p.code = t.product_code
		ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t           domain.Transaction
			kind        string
			supplierRef sql.NullString
			customerRef sql.NullString
		)
		if err := rows.Scan(&t.ID, &kind, &t.Quantity, &t.ProductCode, &t.OccurredAt, &t.Reason, &t.Note,
			&t.User, &supplierRef, &customerRef); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		t.Kind, err = domain.ParseTransactionKind(kind)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", t.ID, err)
		}
		t.SupplierRef = supplierRef.String
		t.CustomerRef = customerRef.String
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func (m *MySQLStore) SaveProduct(ctx context.Context, p domain.Product) (err error) {
	ctx, span := m.startSpan(ctx, "save_product")
	defer func() { endSpan(span, err) }()

	if p.Supplier == nil {
		return ErrMissingSupplier
	}

	var (
		expiresOn    sql.NullTime
		refrigerated sql.NullBool
	)
	if p.IsPerishable() {
		expiresOn = sql.NullTime{Time: p.ExpiresOn, Valid: !p.ExpiresOn.IsZero()}
		refrigerated = sql.NullBool{Bool: p.Refrigerated, Valid: true}
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO products (code, name, unit_price, stock, supplier_tax_id, kind, expires_on,
		                      refrigerated, category, warranty_months)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.Name, p.UnitPrice, p.Stock, p.Supplier.TaxID, string(p.Kind), expiresOn,
		refrigerated, nullString(p.Category), p.WarrantyMonths,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLStore) UpdateProductStock(ctx context.Context, code string, quantity int) (err error) {
	ctx, span := m.startSpan(ctx, "update_product_stock")
	defer func() { endSpan(span, err) }()

	// RowsAffected is 0 for an unchanged value too, so it cannot detect a missing product
	if _, err = m.db.ExecContext(ctx, `UPDATE products SET stock = ? WHERE code = ?`, quantity, code); err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	return nil
}

func (m *MySQLStore) SaveSupplier(ctx context.Context, s domain.Supplier) (err error) {
	ctx, span := m.startSpan(ctx, "save_supplier")
	defer func() { endSpan(span, err) }()

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO suppliers (tax_id, legal_name, contact)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE legal_name = VALUES(legal_name), contact = VALUES(contact)`,
		s.TaxID, s.LegalName, s.Contact,
	)
	if err != nil {
		return fmt.Errorf("upsert supplier: %w", err)
	}
	return nil
}

func (m *MySQLStore) SaveTransaction(ctx context.Context, t domain.Transaction) (saved domain.Transaction, err error) {
	ctx, span := m.startSpan(ctx, "save_transaction")
	defer func() { endSpan(span, err) }()

	result, err := m.db.ExecContext(ctx, `
		INSERT INTO stock_transactions (kind, quantity, product_code, occurred_at, reason, note,
		                                user_name, supplier_ref, customer_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Kind), t.Quantity, t.ProductCode, t.OccurredAt, t.Reason, t.Note,
		t.User, nullString(t.SupplierRef), nullString(t.CustomerRef),
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	span.SetAttributes(attribute.Int64("inventory.transaction_id", id))

	t.ID = id
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
