package billing

import (
	"strings"
	"time"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid   InvoiceStatus = "UNPAID"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusDeferred InvoiceStatus = "DEFERRED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusDeferred:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsOutstanding reports whether the invoice amount still counts toward the
// payer's carried balance.
func (s InvoiceStatus) IsOutstanding() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusDeferred
}

// ParseInvoiceStatus parses a status token from the status transition entry
// point. Tokens are case-insensitive.
func ParseInvoiceStatus(token string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(token)))
	if !status.IsValid() {
		return "", shared.NewDomainError("INVALID_INPUT", "invalid invoice status: "+token)
	}
	return status, nil
}

// Invoice bills one payer for one ledger period. Created only by the closing
// procedure; afterwards the status transition is the only mutation surface.
type Invoice struct {
	shared.BaseEntity
	PeriodID       uuid.UUID
	PayerID        uuid.UUID
	PayerName      string
	PayerKind      PayerKind
	Status         InvoiceStatus
	CarriedBalance decimal.Decimal
	Surcharges     decimal.Decimal
	ItemsTotal     decimal.Decimal
	GrandTotal     decimal.Decimal
	PaidAt         *time.Time
	Lines          []InvoiceLine
}

// InvoiceLine aggregates all purchase events of one (item, unit price) pair
// on an invoice. Items sold at different historical prices keep separate
// lines so price history is preserved.
type InvoiceLine struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	ItemName  string
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// NewInvoice creates an unpaid invoice for the given payer and period.
// GrandTotal charges the current period only: items total plus surcharges.
// The carried balance is stored for display but stays collectible on the
// invoices it originated from.
func NewInvoice(periodID uuid.UUID, payer PayerKey, itemsTotal, carriedBalance, surcharges decimal.Decimal) *Invoice {
	return &Invoice{
		BaseEntity:     shared.NewBaseEntity(),
		PeriodID:       periodID,
		PayerID:        payer.ID,
		PayerName:      payer.Name,
		PayerKind:      payer.Kind,
		Status:         InvoiceStatusUnpaid,
		CarriedBalance: carriedBalance,
		Surcharges:     surcharges,
		ItemsTotal:     itemsTotal,
		GrandTotal:     itemsTotal.Add(surcharges),
	}
}

// SetStatus applies a status transition. All three states are mutually
// reachable; transitioning to Paid stamps PaidAt, transitioning away clears
// it. The setter is idempotent.
func (i *Invoice) SetStatus(status InvoiceStatus, now time.Time) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "invalid invoice status: "+string(status))
	}
	if status == InvoiceStatusPaid {
		if i.Status != InvoiceStatusPaid {
			i.PaidAt = &now
		}
	} else {
		i.PaidAt = nil
	}
	i.Status = status
	i.UpdatedAt = now
	return nil
}

// IsPaid reports whether the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}
