package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseEventRepository is the billing engine's view of the purchase event
// log. The log itself is owned by the capture subsystem.
type PurchaseEventRepository interface {
	// FindUnbilled returns all unbilled events ordered by payer then
	// occurrence time.
	FindUnbilled(ctx context.Context) ([]PurchaseEvent, error)
	// MarkBilled flips the billed flag on the given events, guarded so an
	// already-billed event is never flipped twice. Returns the number of
	// rows actually updated.
	MarkBilled(ctx context.Context, ids []uuid.UUID) (int64, error)
	// Save writes an event. Only the capture boundary and tests use this.
	Save(ctx context.Context, event *PurchaseEvent) error
}

// PeriodRepository persists ledger periods.
type PeriodRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerPeriod, error)
	// FindLatest returns the period with the highest sequence number, or
	// shared.ErrNotFound when no period exists yet.
	FindLatest(ctx context.Context) (*LedgerPeriod, error)
	FindAll(ctx context.Context) ([]LedgerPeriod, error)
	Create(ctx context.Context, period *LedgerPeriod) error
	Update(ctx context.Context, period *LedgerPeriod) error
}

// InvoiceRepository persists invoices and their owned lines.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByPeriod(ctx context.Context, periodID uuid.UUID) ([]Invoice, error)
	// CreateWithLines inserts the invoice and all of its lines.
	CreateWithLines(ctx context.Context, invoice *Invoice) error
	Save(ctx context.Context, invoice *Invoice) error
	// SumOutstandingByPayer totals the grand totals of the payer's unpaid
	// and deferred invoices outside the given period.
	SumOutstandingByPayer(ctx context.Context, payerID, excludePeriodID uuid.UUID) (decimal.Decimal, error)
}

// ArtifactRepository persists export artifact cache entries.
type ArtifactRepository interface {
	FindByOwner(ctx context.Context, ownerType ArtifactOwnerType, ownerID uuid.UUID) (*ExportArtifact, error)
	Create(ctx context.Context, artifact *ExportArtifact) error
	DeleteByOwner(ctx context.Context, ownerType ArtifactOwnerType, ownerID uuid.UUID) error
}

// TxStores bundles the repositories participating in the closing
// transaction. Every store operates on the same underlying transaction.
type TxStores struct {
	Events   PurchaseEventRepository
	Periods  PeriodRepository
	Invoices InvoiceRepository
}

// TxRunner executes fn against a serializing transactional view of the
// ledger stores. Any error returned by fn rolls the whole transaction back.
type TxRunner interface {
	InTx(ctx context.Context, fn func(stores TxStores) error) error
}
