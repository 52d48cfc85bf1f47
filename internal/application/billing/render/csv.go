// Package render produces export artifacts from period and invoice
// state. Rendering is deterministic: the same database state always
// yields the same bytes.
package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// CSVOptions controls the tabular period export.
type CSVOptions struct {
	// Delimiter is the field separator, ';' when zero.
	Delimiter rune
	// PaymentLinkBase, when set, is prefixed to the invoice ID to form
	// the payment link column.
	PaymentLinkBase string
}

// itemColumn is one quantity column of the export: a distinct
// (item name, unit price) pair across all invoices of the period.
type itemColumn struct {
	name  string
	price decimal.Decimal
	label string
}

// PeriodExportFileName names the tabular export after the day the
// period was opened, e.g. Invoice_3_Feb_2026.csv.
func PeriodExportFileName(period *billing.LedgerPeriod) string {
	return "Invoice_" + period.CreatedAt.Format("2_Jan_2006") + ".csv"
}

// PeriodCSV renders the tabular export of a closed period: one row per
// invoice, one quantity column per distinct priced item, followed by
// totals, a unit-price reference row and a grand-total row.
func PeriodCSV(period *billing.LedgerPeriod, invoices []billing.Invoice, opts CSVOptions) ([]byte, error) {
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ';'
	}

	sorted := make([]billing.Invoice, len(invoices))
	copy(sorted, invoices)
	sortInvoicesForExport(sorted)

	columns := collectItemColumns(sorted)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delimiter

	header := []string{"Payer"}
	for _, col := range columns {
		header = append(header, col.label)
	}
	header = append(header, "Items total", "Carried balance", "Surcharge",
		"Grand total", "Surcharge %", "Payment link", "Paid")
	if err := w.Write(header); err != nil {
		return nil, err
	}

	width := len(header)
	totalQty := make([]int64, len(columns))
	itemsSum := decimal.Zero
	carriedSum := decimal.Zero
	surchargeSum := decimal.Zero
	grandSum := decimal.Zero

	for i := range sorted {
		inv := &sorted[i]
		row := make([]string, 0, width)
		row = append(row, inv.PayerName)

		quantities := quantitiesByColumn(inv, columns)
		for c, qty := range quantities {
			totalQty[c] += qty
			row = append(row, formatQuantity(qty))
		}

		row = append(row,
			inv.ItemsTotal.StringFixed(2),
			inv.CarriedBalance.StringFixed(2),
			inv.Surcharges.StringFixed(2),
			inv.GrandTotal.StringFixed(2),
			surchargeRatio(inv.Surcharges, inv.ItemsTotal),
			paymentLink(opts.PaymentLinkBase, inv),
			paidMarker(inv),
		)
		if err := w.Write(row); err != nil {
			return nil, err
		}

		itemsSum = itemsSum.Add(inv.ItemsTotal)
		carriedSum = carriedSum.Add(inv.CarriedBalance)
		surchargeSum = surchargeSum.Add(inv.Surcharges)
		grandSum = grandSum.Add(inv.GrandTotal)
	}

	if err := w.Write(make([]string, width)); err != nil {
		return nil, err
	}

	priceRow := make([]string, 0, width)
	priceRow = append(priceRow, "Unit price")
	for _, col := range columns {
		priceRow = append(priceRow, col.price.StringFixed(2))
	}
	for len(priceRow) < width {
		priceRow = append(priceRow, "")
	}
	if err := w.Write(priceRow); err != nil {
		return nil, err
	}

	totalRow := make([]string, 0, width)
	totalRow = append(totalRow, "Total")
	for _, qty := range totalQty {
		totalRow = append(totalRow, formatQuantity(qty))
	}
	totalRow = append(totalRow,
		itemsSum.StringFixed(2),
		carriedSum.StringFixed(2),
		surchargeSum.StringFixed(2),
		grandSum.StringFixed(2),
		surchargeRatio(surchargeSum, itemsSum),
		"",
		"",
	)
	if err := w.Write(totalRow); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sortInvoicesForExport orders group payers before members, then
// alphabetically by payer name within each kind.
func sortInvoicesForExport(invoices []billing.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := &invoices[i], &invoices[j]
		if a.PayerKind != b.PayerKind {
			return a.PayerKind == billing.PayerKindGroup
		}
		return strings.ToLower(a.PayerName) < strings.ToLower(b.PayerName)
	})
}

// collectItemColumns gathers the distinct (item name, unit price) pairs
// across all invoice lines, sorted by name then price. An item sold at
// more than one price keeps one column per price, labeled with the
// price to disambiguate.
func collectItemColumns(invoices []billing.Invoice) []itemColumn {
	type colKey struct {
		name  string
		price string
	}
	seen := make(map[colKey]bool)
	var columns []itemColumn
	for i := range invoices {
		for _, line := range invoices[i].Lines {
			key := colKey{name: line.ItemName, price: line.UnitPrice.String()}
			if seen[key] {
				continue
			}
			seen[key] = true
			columns = append(columns, itemColumn{name: line.ItemName, price: line.UnitPrice})
		}
	}

	sort.Slice(columns, func(i, j int) bool {
		if columns[i].name != columns[j].name {
			return columns[i].name < columns[j].name
		}
		return columns[i].price.LessThan(columns[j].price)
	})

	nameCount := make(map[string]int)
	for _, col := range columns {
		nameCount[col.name]++
	}
	for i := range columns {
		if nameCount[columns[i].name] > 1 {
			columns[i].label = fmt.Sprintf("%s (%s)", columns[i].name, columns[i].price.StringFixed(2))
		} else {
			columns[i].label = columns[i].name
		}
	}
	return columns
}

func quantitiesByColumn(inv *billing.Invoice, columns []itemColumn) []int64 {
	quantities := make([]int64, len(columns))
	for _, line := range inv.Lines {
		for c, col := range columns {
			if col.name == line.ItemName && col.price.Equal(line.UnitPrice) {
				quantities[c] += line.Quantity
				break
			}
		}
	}
	return quantities
}

func formatQuantity(qty int64) string {
	if qty == 0 {
		return ""
	}
	return strconv.FormatInt(qty, 10)
}

// surchargeRatio formats the surcharge as a percentage of the items
// total, empty when there is nothing to relate it to.
func surchargeRatio(surcharge, itemsTotal decimal.Decimal) string {
	if itemsTotal.IsZero() || surcharge.IsZero() {
		return ""
	}
	ratio := surcharge.Div(itemsTotal).Mul(decimal.NewFromInt(100))
	return ratio.StringFixed(2) + "%"
}

func paymentLink(base string, inv *billing.Invoice) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + inv.ID.String()
}

func paidMarker(inv *billing.Invoice) string {
	if inv.IsPaid() {
		return "X"
	}
	return ""
}
