package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusService applies invoice status transitions.
type StatusService struct {
	invoices billing.InvoiceRepository
	logger   *zap.Logger
}

// NewStatusService creates a StatusService.
func NewStatusService(invoices billing.InvoiceRepository, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{invoices: invoices, logger: logger}
}

// SetStatus moves an invoice to the given status. The token is
// case-insensitive; setting the current status again is a no-op that
// keeps the original PaidAt timestamp.
func (s *StatusService) SetStatus(ctx context.Context, invoiceID uuid.UUID, token string) (*billing.Invoice, error) {
	status, err := billing.ParseInvoiceStatus(token)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	previous := invoice.Status
	if err := invoice.SetStatus(status, time.Now()); err != nil {
		return nil, err
	}

	if err := s.invoices.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to store invoice status: %w", err)
	}

	s.logger.Info("invoice status changed",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("from", previous.String()),
		zap.String("to", status.String()))

	return invoice, nil
}
