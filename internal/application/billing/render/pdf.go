package render

import (
	"bytes"
	"fmt"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared/valueobject"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// money formats an amount with its currency for the document.
func money(d decimal.Decimal) string {
	return valueobject.NewMoneyEUR(d).String()
}

// InvoiceDocumentFileName names the per-payer document after the period
// sequence and the sanitized payer name, e.g. Invoice_7_Fall_Social.pdf.
func InvoiceDocumentFileName(period *billing.LedgerPeriod, invoice *billing.Invoice) string {
	return fmt.Sprintf("Invoice_%d_%s.pdf", period.SequenceNumber, billing.SanitizeFileNamePart(invoice.PayerName))
}

// InvoicePDF renders the printable document for one invoice: a line
// item table followed by a totals block and the payment status.
func InvoicePDF(period *billing.LedgerPeriod, invoice *billing.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Invoice #%d", period.SequenceNumber))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Payer: %s", invoice.PayerName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Billing period: #%d, opened %s", period.SequenceNumber, period.CreatedAt.Format("2 Jan 2006")))
	pdf.Ln(5)
	if period.ClosedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Closed: %s", period.ClosedAt.Format("2 Jan 2006")))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range invoice.Lines {
		pdf.CellFormat(80, 7, line.ItemName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, line.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, line.LineTotal.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	summaryLine := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(140, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, value, "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	summaryLine("Items total", money(invoice.ItemsTotal), false)
	summaryLine("Surcharges", money(invoice.Surcharges), false)
	summaryLine("Grand total (this period)", money(invoice.GrandTotal), true)
	summaryLine("Carried balance (earlier periods)", money(invoice.CarriedBalance), false)
	summaryLine("Total outstanding", money(invoice.GrandTotal.Add(invoice.CarriedBalance)), true)

	pdf.Ln(8)
	if invoice.IsPaid() && invoice.PaidAt != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, fmt.Sprintf("PAID on %s", invoice.PaidAt.Format("2 Jan 2006")))
	} else {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, "PAYMENT PENDING")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
