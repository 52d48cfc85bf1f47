package billing

import (
	"time"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerPeriod is one billing cycle. Periods carry a gap-free, strictly
// increasing sequence number; at most one period is open at any time.
type LedgerPeriod struct {
	shared.BaseEntity
	SequenceNumber int64
	AggregateTotal decimal.Decimal
	CreatedBy      uuid.UUID
	ClosedAt       *time.Time
}

// NewLedgerPeriod creates a new open ledger period with the given sequence
// number.
func NewLedgerPeriod(sequenceNumber int64, createdBy uuid.UUID) *LedgerPeriod {
	return &LedgerPeriod{
		BaseEntity:     shared.NewBaseEntity(),
		SequenceNumber: sequenceNumber,
		AggregateTotal: decimal.Zero,
		CreatedBy:      createdBy,
	}
}

// IsOpen reports whether the period is still accepting its closing.
func (p *LedgerPeriod) IsOpen() bool {
	return p.ClosedAt == nil
}

// Close transitions the period to the closed state. A period closes exactly
// once.
func (p *LedgerPeriod) Close(now time.Time) error {
	if !p.IsOpen() {
		return shared.NewDomainError("INVALID_STATE", "ledger period is already closed")
	}
	p.ClosedAt = &now
	p.UpdatedAt = now
	return nil
}
