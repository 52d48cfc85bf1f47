package models

import (
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseEventModel is the persistence model for purchase events. The table
// is owned by the purchase-capture subsystem; the billing side only reads
// unbilled rows and flips the billed flag.
type PurchaseEventModel struct {
	BaseModel
	PayerID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_purchase_events_payer_time,priority:1"`
	PayerName  string          `gorm:"type:varchar(200);not null"`
	GroupLabel string          `gorm:"type:varchar(200)"`
	ItemName   string          `gorm:"type:varchar(200);not null"`
	Quantity   int64           `gorm:"not null"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Total      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Billed     bool            `gorm:"not null;default:false;index"`
	OccurredAt time.Time       `gorm:"not null;index:idx_purchase_events_payer_time,priority:2"`
}

// TableName returns the table name for GORM
func (PurchaseEventModel) TableName() string {
	return "purchase_events"
}

// ToDomain converts the persistence model to a domain PurchaseEvent.
func (m *PurchaseEventModel) ToDomain() *billing.PurchaseEvent {
	return &billing.PurchaseEvent{
		BaseEntity: m.BaseModel.ToDomain(),
		PayerID:    m.PayerID,
		PayerName:  m.PayerName,
		GroupLabel: m.GroupLabel,
		ItemName:   m.ItemName,
		Quantity:   m.Quantity,
		UnitPrice:  m.UnitPrice,
		Total:      m.Total,
		Billed:     m.Billed,
		OccurredAt: m.OccurredAt,
	}
}

// FromDomain populates the persistence model from a domain PurchaseEvent.
func (m *PurchaseEventModel) FromDomain(e *billing.PurchaseEvent) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.PayerID = e.PayerID
	m.PayerName = e.PayerName
	m.GroupLabel = e.GroupLabel
	m.ItemName = e.ItemName
	m.Quantity = e.Quantity
	m.UnitPrice = e.UnitPrice
	m.Total = e.Total
	m.Billed = e.Billed
	m.OccurredAt = e.OccurredAt
}

// LedgerPeriodModel is the persistence model for ledger periods. The unique
// index on sequence_number backstops concurrent closings.
type LedgerPeriodModel struct {
	BaseModel
	SequenceNumber int64           `gorm:"not null;uniqueIndex"`
	AggregateTotal decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedBy      uuid.UUID       `gorm:"type:uuid;not null"`
	ClosedAt       *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (LedgerPeriodModel) TableName() string {
	return "ledger_periods"
}

// ToDomain converts the persistence model to a domain LedgerPeriod.
func (m *LedgerPeriodModel) ToDomain() *billing.LedgerPeriod {
	return &billing.LedgerPeriod{
		BaseEntity:     m.BaseModel.ToDomain(),
		SequenceNumber: m.SequenceNumber,
		AggregateTotal: m.AggregateTotal,
		CreatedBy:      m.CreatedBy,
		ClosedAt:       m.ClosedAt,
	}
}

// FromDomain populates the persistence model from a domain LedgerPeriod.
func (m *LedgerPeriodModel) FromDomain(p *billing.LedgerPeriod) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.SequenceNumber = p.SequenceNumber
	m.AggregateTotal = p.AggregateTotal
	m.CreatedBy = p.CreatedBy
	m.ClosedAt = p.ClosedAt
}

// InvoiceModel is the persistence model for invoices. The composite unique
// index enforces one invoice per payer per period.
type InvoiceModel struct {
	BaseModel
	PeriodID       uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_period_payer,priority:1"`
	PayerID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_period_payer,priority:2;index"`
	PayerName      string                `gorm:"type:varchar(200);not null"`
	PayerKind      billing.PayerKind     `gorm:"type:varchar(20);not null"`
	Status         billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
	CarriedBalance decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Surcharges     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	ItemsTotal     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	GrandTotal     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PaidAt         *time.Time
	Lines          []InvoiceLineModel `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	lines := make([]billing.InvoiceLine, len(m.Lines))
	for i, line := range m.Lines {
		lines[i] = *line.ToDomain()
	}
	return &billing.Invoice{
		BaseEntity:     m.BaseModel.ToDomain(),
		PeriodID:       m.PeriodID,
		PayerID:        m.PayerID,
		PayerName:      m.PayerName,
		PayerKind:      m.PayerKind,
		Status:         m.Status,
		CarriedBalance: m.CarriedBalance,
		Surcharges:     m.Surcharges,
		ItemsTotal:     m.ItemsTotal,
		GrandTotal:     m.GrandTotal,
		PaidAt:         m.PaidAt,
		Lines:          lines,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.PeriodID = inv.PeriodID
	m.PayerID = inv.PayerID
	m.PayerName = inv.PayerName
	m.PayerKind = inv.PayerKind
	m.Status = inv.Status
	m.CarriedBalance = inv.CarriedBalance
	m.Surcharges = inv.Surcharges
	m.ItemsTotal = inv.ItemsTotal
	m.GrandTotal = inv.GrandTotal
	m.PaidAt = inv.PaidAt
	m.Lines = make([]InvoiceLineModel, len(inv.Lines))
	for i := range inv.Lines {
		m.Lines[i].FromDomain(&inv.Lines[i])
	}
}

// InvoiceLineModel is the persistence model for invoice lines. Lines are
// owned by their invoice and share its lifecycle.
type InvoiceLineModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ItemName  string          `gorm:"type:varchar(200);not null"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceLineModel) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the persistence model to a domain InvoiceLine.
func (m *InvoiceLineModel) ToDomain() *billing.InvoiceLine {
	return &billing.InvoiceLine{
		ID:        m.ID,
		InvoiceID: m.InvoiceID,
		ItemName:  m.ItemName,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		LineTotal: m.LineTotal,
	}
}

// FromDomain populates the persistence model from a domain InvoiceLine.
func (m *InvoiceLineModel) FromDomain(line *billing.InvoiceLine) {
	m.ID = line.ID
	m.InvoiceID = line.InvoiceID
	m.ItemName = line.ItemName
	m.Quantity = line.Quantity
	m.UnitPrice = line.UnitPrice
	m.LineTotal = line.LineTotal
}

// ExportArtifactModel is the persistence model for export artifact cache
// entries. The composite unique index resolves duplicate-insert races:
// first insert wins, the loser discards its generated object.
type ExportArtifactModel struct {
	BaseModel
	OwnerType  billing.ArtifactOwnerType `gorm:"type:varchar(20);not null;uniqueIndex:idx_artifacts_owner,priority:1"`
	OwnerID    uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_artifacts_owner,priority:2"`
	StorageKey string                    `gorm:"type:varchar(500);not null"`
	StorageURL string                    `gorm:"type:varchar(1000);not null"`
	FileName   string                    `gorm:"type:varchar(300);not null"`
	FileSize   int64                     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExportArtifactModel) TableName() string {
	return "export_artifacts"
}

// ToDomain converts the persistence model to a domain ExportArtifact.
func (m *ExportArtifactModel) ToDomain() *billing.ExportArtifact {
	return &billing.ExportArtifact{
		BaseEntity: m.BaseModel.ToDomain(),
		OwnerType:  m.OwnerType,
		OwnerID:    m.OwnerID,
		StorageKey: m.StorageKey,
		StorageURL: m.StorageURL,
		FileName:   m.FileName,
		FileSize:   m.FileSize,
	}
}

// FromDomain populates the persistence model from a domain ExportArtifact.
func (m *ExportArtifactModel) FromDomain(a *billing.ExportArtifact) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.OwnerType = a.OwnerType
	m.OwnerID = a.OwnerID
	m.StorageKey = a.StorageKey
	m.StorageURL = a.StorageURL
	m.FileName = a.FileName
	m.FileSize = a.FileSize
}

// All returns every billing persistence model for migration.
func All() []any {
	return []any{
		&PurchaseEventModel{},
		&LedgerPeriodModel{},
		&InvoiceModel{},
		&InvoiceLineModel{},
		&ExportArtifactModel{},
	}
}
