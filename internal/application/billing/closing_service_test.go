package billing

import (
	"context"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/infrastructure/metrics"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// closingFixture wires the closing service against an in-memory SQLite
// database, mirroring the production wiring minus Postgres.
type closingFixture struct {
	db       *persistence.Database
	events   billing.PurchaseEventRepository
	periods  billing.PeriodRepository
	invoices billing.InvoiceRepository
}

func newClosingFixture(t *testing.T) *closingFixture {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, persistence.AutoMigrate(gdb))
	return &closingFixture{
		db:       persistence.NewDatabaseFromGorm(gdb),
		events:   persistence.NewGormPurchaseEventRepository(gdb),
		periods:  persistence.NewGormPeriodRepository(gdb),
		invoices: persistence.NewGormInvoiceRepository(gdb),
	}
}

func (f *closingFixture) seedEvent(t *testing.T, payerID uuid.UUID, payerName, groupLabel, item string, qty int64, price string) *billing.PurchaseEvent {
	event, err := billing.NewPurchaseEvent(payerID, payerName, groupLabel, item, qty,
		decimal.RequireFromString(price), time.Now())
	require.NoError(t, err)
	require.NoError(t, f.events.Save(context.Background(), event))
	return event
}

func (f *closingFixture) service(surchargeRate float64) *ClosingService {
	return NewClosingService(f.db, surchargeRate, metrics.New(), nil)
}

func decimalString(t *testing.T, d decimal.Decimal, want string) {
	t.Helper()
	assert.True(t, d.Equal(decimal.RequireFromString(want)),
		"expected %s, got %s", want, d.String())
}

func TestClosingService_CloseAndBill(t *testing.T) {
	ctx := context.Background()
	initiator := uuid.New()

	t.Run("sweeps events into invoices under a new period", func(t *testing.T) {
		f := newClosingFixture(t)
		ada := uuid.New()
		bob := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 2, "1.50")
		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 3, "1.50")
		f.seedEvent(t, bob, "Bob", "Fall Social", "Beer", 10, "2.00")

		result, err := f.service(0).CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		assert.True(t, result.PeriodCreated)
		assert.Equal(t, int64(0), result.SequenceNumber)
		assert.Equal(t, 2, result.InvoiceCount)
		assert.Equal(t, 3, result.EventCount)
		decimalString(t, result.AggregateTotal, "27.50")

		invoices, err := f.invoices.FindByPeriod(ctx, result.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 2)

		byName := map[string]*billing.Invoice{}
		for i := range invoices {
			byName[invoices[i].PayerName] = &invoices[i]
		}

		adaInv := byName["Ada"]
		require.NotNil(t, adaInv)
		assert.Equal(t, billing.PayerKindMember, adaInv.PayerKind)
		require.Len(t, adaInv.Lines, 1, "same item at same price collapses to one line")
		assert.Equal(t, int64(5), adaInv.Lines[0].Quantity)
		decimalString(t, adaInv.Lines[0].LineTotal, "7.50")
		decimalString(t, adaInv.GrandTotal, "7.50")

		groupInv := byName["Fall Social"]
		require.NotNil(t, groupInv)
		assert.Equal(t, billing.PayerKindGroup, groupInv.PayerKind)
		assert.Equal(t, billing.GroupPayerKey("Fall Social").ID, groupInv.PayerID)
		decimalString(t, groupInv.GrandTotal, "20.00")

		unbilled, err := f.events.FindUnbilled(ctx)
		require.NoError(t, err)
		assert.Empty(t, unbilled, "every swept event is marked billed")
	})

	t.Run("no unbilled events means no period row", func(t *testing.T) {
		f := newClosingFixture(t)

		result, err := f.service(0).CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		assert.False(t, result.PeriodCreated)
		assert.Zero(t, result.InvoiceCount)
		decimalString(t, result.AggregateTotal, "0")

		periods, err := f.periods.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, periods)
	})

	t.Run("sequence numbers advance and the previous period closes", func(t *testing.T) {
		f := newClosingFixture(t)
		svc := f.service(0)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Coffee", 1, "1.00")
		first, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		f.seedEvent(t, ada, "Ada", "", "Coffee", 1, "1.00")
		second, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		assert.Equal(t, int64(0), first.SequenceNumber)
		assert.Equal(t, int64(1), second.SequenceNumber)

		previous, err := f.periods.FindByID(ctx, first.PeriodID)
		require.NoError(t, err)
		assert.False(t, previous.IsOpen())
		assert.NotNil(t, previous.ClosedAt)
	})

	t.Run("already billed events are never swept again", func(t *testing.T) {
		f := newClosingFixture(t)
		svc := f.service(0)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Coffee", 2, "1.00")
		first, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)
		decimalString(t, first.AggregateTotal, "2.00")

		f.seedEvent(t, ada, "Ada", "", "Coffee", 1, "1.00")
		second, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		assert.Equal(t, 1, second.EventCount)
		decimalString(t, second.AggregateTotal, "1.00")
	})

	t.Run("carried balance sums outstanding invoices of earlier periods", func(t *testing.T) {
		f := newClosingFixture(t)
		svc := f.service(0)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 5, "1.50")
		first, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		f.seedEvent(t, ada, "Ada", "", "Coffee", 1, "1.00")
		second, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		invoices, err := f.invoices.FindByPeriod(ctx, second.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		decimalString(t, invoices[0].CarriedBalance, "7.50")
		// The carried balance is informational; the invoice only charges
		// the current period.
		decimalString(t, invoices[0].GrandTotal, "1.00")

		// Settle the first invoice, the next carried balance drops it.
		firstInvoices, err := f.invoices.FindByPeriod(ctx, first.PeriodID)
		require.NoError(t, err)
		require.Len(t, firstInvoices, 1)
		require.NoError(t, firstInvoices[0].SetStatus(billing.InvoiceStatusPaid, time.Now()))
		require.NoError(t, f.invoices.Save(ctx, &firstInvoices[0]))

		f.seedEvent(t, ada, "Ada", "", "Coffee", 1, "1.00")
		third, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		thirdInvoices, err := f.invoices.FindByPeriod(ctx, third.PeriodID)
		require.NoError(t, err)
		require.Len(t, thirdInvoices, 1)
		decimalString(t, thirdInvoices[0].CarriedBalance, "1.00")
	})

	t.Run("group labels normalize to one synthetic payer", func(t *testing.T) {
		f := newClosingFixture(t)
		ada := uuid.New()
		bob := uuid.New()

		f.seedEvent(t, ada, "Ada", "Fall Social", "Beer", 2, "2.00")
		f.seedEvent(t, bob, "Bob", "  fall   SOCIAL ", "Beer", 3, "2.00")

		result, err := f.service(0).CloseAndBill(ctx, initiator)
		require.NoError(t, err)
		assert.Equal(t, 1, result.InvoiceCount)

		invoices, err := f.invoices.FindByPeriod(ctx, result.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		require.Len(t, invoices[0].Lines, 1)
		assert.Equal(t, int64(5), invoices[0].Lines[0].Quantity)
		decimalString(t, invoices[0].GrandTotal, "10.00")
	})

	t.Run("groups never carry balance", func(t *testing.T) {
		f := newClosingFixture(t)
		svc := f.service(0)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "Fall Social", "Beer", 1, "2.00")
		_, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		f.seedEvent(t, ada, "Ada", "Fall Social", "Beer", 1, "2.00")
		second, err := svc.CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		invoices, err := f.invoices.FindByPeriod(ctx, second.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		decimalString(t, invoices[0].CarriedBalance, "0")
	})

	t.Run("surcharge rate applies per invoice", func(t *testing.T) {
		f := newClosingFixture(t)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 5, "1.50")

		result, err := f.service(10).CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		invoices, err := f.invoices.FindByPeriod(ctx, result.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		decimalString(t, invoices[0].Surcharges, "0.75")
		decimalString(t, invoices[0].GrandTotal, "8.25")
		decimalString(t, result.AggregateTotal, "8.25")
	})

	t.Run("same item at different prices keeps separate lines", func(t *testing.T) {
		f := newClosingFixture(t)
		ada := uuid.New()

		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 2, "1.50")
		f.seedEvent(t, ada, "Ada", "", "Club-Mate", 2, "1.80")

		result, err := f.service(0).CloseAndBill(ctx, initiator)
		require.NoError(t, err)

		invoices, err := f.invoices.FindByPeriod(ctx, result.PeriodID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Len(t, invoices[0].Lines, 2)
		decimalString(t, invoices[0].ItemsTotal, "6.60")
	})
}
