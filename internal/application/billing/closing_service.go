// Package billing implements the application services of the billing
// engine: period closing, invoice status transitions, and the export
// artifact cache.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosingService runs the transactional period closing: it sweeps all
// unbilled purchase events into invoices under a fresh ledger period.
type ClosingService struct {
	tx            billing.TxRunner
	surchargeRate decimal.Decimal
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewClosingService creates a ClosingService. surchargeRate is a
// percentage (2.5 means 2.5%); zero disables surcharges.
func NewClosingService(tx billing.TxRunner, surchargeRate float64, m *metrics.Metrics, logger *zap.Logger) *ClosingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClosingService{
		tx:            tx,
		surchargeRate: decimal.NewFromFloat(surchargeRate),
		metrics:       m,
		logger:        logger,
	}
}

// ClosingResult summarizes one closing run.
type ClosingResult struct {
	PeriodID       uuid.UUID       `json:"period_id,omitempty"`
	SequenceNumber int64           `json:"sequence_number"`
	PeriodCreated  bool            `json:"period_created"`
	InvoiceCount   int             `json:"invoice_count"`
	EventCount     int             `json:"event_count"`
	AggregateTotal decimal.Decimal `json:"aggregate_total"`
}

// payerPartition accumulates one payer's share of a closing run.
type payerPartition struct {
	key    billing.PayerKey
	events []*billing.PurchaseEvent
}

// CloseAndBill executes the closing procedure atomically. When no
// unbilled events exist the run is a no-op: no period row is created and
// the result reports zero invoices. Otherwise every unbilled event ends
// up on exactly one invoice line of exactly one invoice under the new
// period.
func (s *ClosingService) CloseAndBill(ctx context.Context, initiatorID uuid.UUID) (*ClosingResult, error) {
	started := time.Now()
	result := &ClosingResult{AggregateTotal: decimal.Zero}

	err := s.tx.InTx(ctx, func(stores billing.TxStores) error {
		events, err := stores.Events.FindUnbilled(ctx)
		if err != nil {
			return fmt.Errorf("failed to load unbilled events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		sequence, err := s.advancePeriodChain(ctx, stores)
		if err != nil {
			return err
		}

		period := billing.NewLedgerPeriod(sequence, initiatorID)
		if err := stores.Periods.Create(ctx, period); err != nil {
			return fmt.Errorf("failed to create period %d: %w", sequence, err)
		}

		partitions := partitionByPayer(events)

		aggregate := decimal.Zero
		eventIDs := make([]uuid.UUID, 0, len(events))
		for _, part := range partitions {
			invoice, err := s.buildInvoice(ctx, stores, period, part)
			if err != nil {
				return err
			}
			if err := stores.Invoices.CreateWithLines(ctx, invoice); err != nil {
				return fmt.Errorf("failed to create invoice for payer %s: %w", part.key.Name, err)
			}
			aggregate = aggregate.Add(invoice.GrandTotal)
			for _, ev := range part.events {
				eventIDs = append(eventIDs, ev.ID)
			}
		}

		affected, err := stores.Events.MarkBilled(ctx, eventIDs)
		if err != nil {
			return fmt.Errorf("failed to mark events billed: %w", err)
		}
		if affected != int64(len(eventIDs)) {
			// Another closing raced us and claimed some of the events.
			return fmt.Errorf("expected to bill %d events, billed %d: %w",
				len(eventIDs), affected, shared.ErrConcurrencyConflict)
		}

		period.AggregateTotal = aggregate
		if err := stores.Periods.Update(ctx, period); err != nil {
			return fmt.Errorf("failed to store period total: %w", err)
		}

		result.PeriodID = period.ID
		result.SequenceNumber = period.SequenceNumber
		result.PeriodCreated = true
		result.InvoiceCount = len(partitions)
		result.EventCount = len(events)
		result.AggregateTotal = aggregate
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ClosingFailures.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ClosingsTotal.Inc()
		s.metrics.InvoicesCreated.Add(float64(result.InvoiceCount))
		s.metrics.ClosingDuration.Observe(time.Since(started).Seconds())
	}

	if result.PeriodCreated {
		s.logger.Info("billing period closed",
			zap.Int64("sequence", result.SequenceNumber),
			zap.Int("invoices", result.InvoiceCount),
			zap.Int("events", result.EventCount),
			zap.String("aggregate_total", result.AggregateTotal.StringFixed(2)))
	} else {
		s.logger.Info("closing skipped, no unbilled events")
	}

	return result, nil
}

// advancePeriodChain closes the still-open latest period, if any, and
// returns the sequence number the new period must take.
func (s *ClosingService) advancePeriodChain(ctx context.Context, stores billing.TxStores) (int64, error) {
	latest, err := stores.Periods.FindLatest(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load latest period: %w", err)
	}

	if latest.IsOpen() {
		if err := latest.Close(time.Now()); err != nil {
			return 0, err
		}
		if err := stores.Periods.Update(ctx, latest); err != nil {
			return 0, fmt.Errorf("failed to close period %d: %w", latest.SequenceNumber, err)
		}
	}

	return latest.SequenceNumber + 1, nil
}

// buildInvoice turns one payer partition into an invoice with collapsed
// lines, carried balance, and surcharges.
func (s *ClosingService) buildInvoice(ctx context.Context, stores billing.TxStores, period *billing.LedgerPeriod, part *payerPartition) (*billing.Invoice, error) {
	itemsTotal := decimal.Zero
	lines := collapseLines(part.events)
	for _, ev := range part.events {
		itemsTotal = itemsTotal.Add(ev.Total)
	}

	carried := decimal.Zero
	if part.key.Kind == billing.PayerKindMember {
		var err error
		carried, err = stores.Invoices.SumOutstandingByPayer(ctx, part.key.ID, period.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to sum carried balance for payer %s: %w", part.key.Name, err)
		}
	}

	surcharges := decimal.Zero
	if s.surchargeRate.IsPositive() {
		surcharges = itemsTotal.Mul(s.surchargeRate).Div(decimal.NewFromInt(100)).Round(2)
	}

	invoice := billing.NewInvoice(period.ID, part.key, itemsTotal, carried, surcharges)
	for i := range lines {
		lines[i].InvoiceID = invoice.ID
	}
	invoice.Lines = lines
	return invoice, nil
}

// partitionByPayer groups events by their billing identity, preserving
// the order payers first appear in the event stream.
func partitionByPayer(events []billing.PurchaseEvent) []*payerPartition {
	index := make(map[uuid.UUID]*payerPartition)
	var ordered []*payerPartition
	for i := range events {
		ev := &events[i]
		key := ev.PartitionKey()
		part, ok := index[key.ID]
		if !ok {
			part = &payerPartition{key: key}
			index[key.ID] = part
			ordered = append(ordered, part)
		}
		part.events = append(part.events, ev)
	}
	return ordered
}

// collapseLines folds events sharing an (item name, unit price) pair
// into a single invoice line, keeping first-seen order.
func collapseLines(events []*billing.PurchaseEvent) []billing.InvoiceLine {
	type lineKey struct {
		item  string
		price string
	}
	index := make(map[lineKey]int)
	var lines []billing.InvoiceLine
	for _, ev := range events {
		key := lineKey{item: ev.ItemName, price: ev.UnitPrice.String()}
		if i, ok := index[key]; ok {
			lines[i].Quantity += ev.Quantity
			lines[i].LineTotal = lines[i].LineTotal.Add(ev.Total)
			continue
		}
		index[key] = len(lines)
		lines = append(lines, billing.InvoiceLine{
			ID:        uuid.New(),
			ItemName:  ev.ItemName,
			Quantity:  ev.Quantity,
			UnitPrice: ev.UnitPrice,
			LineTotal: ev.Total,
		})
	}
	return lines
}
