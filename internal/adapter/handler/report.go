package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/inventory/internal/core/domain"
)

const (
	productsSheet     = "Products"
	transactionsSheet = "Transactions"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	productHeader     = []any{"Code", "Name", "Kind", "Supplier", "Unit price", "Stock", "Expires on", "Refrigerated", "Warranty (months)", "Valuation"}
	transactionHeader = []any{"ID", "Kind", "Occurred at", "Product", "Quantity", "Reason", "User", "Supplier ref", "Customer ref"}
)

// InventoryReport is everything the workbook export renders.
type InventoryReport struct {
	AsOf         time.Time
	Products     []domain.Product
	Transactions []domain.Transaction
	Total        decimal.Decimal
}

// WriteWorkbook renders the report as an xlsx workbook with one sheet for products
// (ending in a total valuation row) and one for transactions.
func WriteWorkbook(w io.Writer, report InventoryReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", productsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(productsSheet, "A1", &productHeader); err != nil {
		return fmt.Errorf("write product header: %w", err)
	}

	row := 2
	for _, p := range report.Products {
		expires := ""
		if p.IsPerishable() && !p.ExpiresOn.IsZero() {
			expires = p.ExpiresOn.Format(dateLayout)
		}
		values := []any{
			p.Code, p.Name, string(p.Kind), p.SupplierTaxID(),
			p.UnitPrice.InexactFloat64(), p.Stock, expires, p.IsPerishable() && p.Refrigerated,
			p.WarrantyMonths, p.Valuation(report.AsOf).InexactFloat64(),
		}
		if err := f.SetSheetRow(productsSheet, cell(1, row), &values); err != nil {
			return fmt.Errorf("write product %s: %w", p.Code, err)
		}
		row++
	}

	total := []any{"Total", "", "", "", "", "", "", "", "", report.Total.InexactFloat64()}
	if err := f.SetSheetRow(productsSheet, cell(1, row), &total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}

	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return fmt.Errorf("create transactions sheet: %w", err)
	}
	if err := f.SetSheetRow(transactionsSheet, "A1", &transactionHeader); err != nil {
		return fmt.Errorf("write transaction header: %w", err)
	}
	for i, t := range report.Transactions {
		values := []any{
			t.ID, string(t.Kind), t.OccurredAt.Format(time.RFC3339), t.ProductCode, t.Quantity,
			t.Reason, t.User, t.SupplierRef, t.CustomerRef,
		}
		if err := f.SetSheetRow(transactionsSheet, cell(1, i+2), &values); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func (h *HTTPHandler) ExportWorkbook(c *gin.Context) {
	report := InventoryReport{
		AsOf:         h.coordinator.Today(),
		Products:     h.coordinator.ListProducts(),
		Transactions: h.coordinator.ListTransactions(),
		Total:        h.coordinator.TotalValuation(),
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, report); err != nil {
		h.logger.Error().Err(err).Msg("failed to export workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	filename := fmt.Sprintf("inventory-%s.xlsx", domain.CalendarDate(report.AsOf).Format(dateLayout))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
