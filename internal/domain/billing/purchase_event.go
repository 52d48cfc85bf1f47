package billing

import (
	"time"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseEvent is a single priced purchase captured by the purchase-capture
// subsystem. The billing engine only ever reads unbilled events and flips
// Billed to true; everything else is owned by the capture side.
type PurchaseEvent struct {
	shared.BaseEntity
	PayerID    uuid.UUID
	PayerName  string
	GroupLabel string // empty for a personal purchase
	ItemName   string
	Quantity   int64
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
	Billed     bool
	OccurredAt time.Time
}

// NewPurchaseEvent creates a purchase event with Total derived from
// Quantity * UnitPrice.
func NewPurchaseEvent(payerID uuid.UUID, payerName, groupLabel, itemName string, quantity int64, unitPrice decimal.Decimal, occurredAt time.Time) (*PurchaseEvent, error) {
	e := &PurchaseEvent{
		BaseEntity: shared.NewBaseEntity(),
		PayerID:    payerID,
		PayerName:  payerName,
		GroupLabel: groupLabel,
		ItemName:   itemName,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Total:      unitPrice.Mul(decimal.NewFromInt(quantity)),
		OccurredAt: occurredAt,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks that the event carries a payer, item, quantity and price.
func (e *PurchaseEvent) Validate() error {
	if e.PayerID == uuid.Nil {
		return shared.NewDomainError("INVALID_INPUT", "purchase event requires a payer")
	}
	if e.ItemName == "" {
		return shared.NewDomainError("INVALID_INPUT", "purchase event requires an item name")
	}
	if e.Quantity <= 0 {
		return shared.NewDomainError("INVALID_INPUT", "purchase event quantity must be positive")
	}
	if e.UnitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "purchase event unit price cannot be negative")
	}
	expected := e.UnitPrice.Mul(decimal.NewFromInt(e.Quantity))
	if !e.Total.Equal(expected) {
		return shared.NewDomainError("INVALID_INPUT", "purchase event total must equal quantity * unit price")
	}
	return nil
}

// IsGroupPurchase reports whether the event is booked against a named group
// rather than the individual payer.
func (e *PurchaseEvent) IsGroupPurchase() bool {
	return e.GroupLabel != ""
}

// PartitionKey returns the payer identity the event is billed to: the
// individual payer for personal purchases, the synthetic group payer for
// group-labeled ones.
func (e *PurchaseEvent) PartitionKey() PayerKey {
	if e.IsGroupPurchase() {
		return GroupPayerKey(e.GroupLabel)
	}
	return PayerKey{
		Kind: PayerKindMember,
		ID:   e.PayerID,
		Name: e.PayerName,
	}
}
