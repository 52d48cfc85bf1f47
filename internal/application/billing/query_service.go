package billing

import (
	"context"
	"fmt"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/google/uuid"
)

// QueryService serves the read side of the API: period and invoice
// listings.
type QueryService struct {
	periods  billing.PeriodRepository
	invoices billing.InvoiceRepository
}

// NewQueryService creates a QueryService.
func NewQueryService(periods billing.PeriodRepository, invoices billing.InvoiceRepository) *QueryService {
	return &QueryService{periods: periods, invoices: invoices}
}

// ListPeriods returns all ledger periods, newest first.
func (s *QueryService) ListPeriods(ctx context.Context) ([]billing.LedgerPeriod, error) {
	periods, err := s.periods.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	return periods, nil
}

// GetPeriod returns one ledger period.
func (s *QueryService) GetPeriod(ctx context.Context, id uuid.UUID) (*billing.LedgerPeriod, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load period: %w", err)
	}
	return period, nil
}

// ListPeriodInvoices returns the invoices of one period with their
// lines. The period must exist.
func (s *QueryService) ListPeriodInvoices(ctx context.Context, periodID uuid.UUID) ([]billing.Invoice, error) {
	if _, err := s.periods.FindByID(ctx, periodID); err != nil {
		return nil, fmt.Errorf("failed to load period: %w", err)
	}
	invoices, err := s.invoices.FindByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list period invoices: %w", err)
	}
	return invoices, nil
}

// GetInvoice returns one invoice with its lines.
func (s *QueryService) GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return invoice, nil
}
