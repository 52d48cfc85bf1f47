package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupBillingTestDB creates an in-memory SQLite database with the billing schema
func setupBillingTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func newTestEvent(t *testing.T, payerID uuid.UUID, payerName, groupLabel, item string, qty int64, price string) *billing.PurchaseEvent {
	event, err := billing.NewPurchaseEvent(payerID, payerName, groupLabel, item, qty,
		decimal.RequireFromString(price), time.Now())
	require.NoError(t, err)
	return event
}

func TestGormPurchaseEventRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPurchaseEventRepository(db)
	ctx := context.Background()

	payerA := uuid.New()
	payerB := uuid.New()

	t.Run("FindUnbilled returns only unbilled ordered by payer then time", func(t *testing.T) {
		billed := newTestEvent(t, payerA, "Ada", "", "Club-Mate", 1, "1.50")
		billed.Billed = true
		require.NoError(t, repo.Save(ctx, billed))
		require.NoError(t, repo.Save(ctx, newTestEvent(t, payerB, "Bob", "", "Coffee", 2, "1.00")))
		require.NoError(t, repo.Save(ctx, newTestEvent(t, payerA, "Ada", "", "Club-Mate", 3, "1.50")))

		unbilled, err := repo.FindUnbilled(ctx)

		require.NoError(t, err)
		require.Len(t, unbilled, 2)
		for _, e := range unbilled {
			assert.False(t, e.Billed)
		}
	})

	t.Run("MarkBilled flips only unbilled rows", func(t *testing.T) {
		event := newTestEvent(t, payerA, "Ada", "", "Coffee", 1, "1.00")
		require.NoError(t, repo.Save(ctx, event))

		affected, err := repo.MarkBilled(ctx, []uuid.UUID{event.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		// Flipping the same event again touches nothing.
		affected, err = repo.MarkBilled(ctx, []uuid.UUID{event.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
	})

	t.Run("MarkBilled with no ids is a no-op", func(t *testing.T) {
		affected, err := repo.MarkBilled(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), affected)
	})
}

func TestGormPeriodRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormPeriodRepository(db)
	ctx := context.Background()

	t.Run("FindLatest on empty store returns not found", func(t *testing.T) {
		_, err := repo.FindLatest(ctx)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("Create and FindLatest track the highest sequence", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, billing.NewLedgerPeriod(0, uuid.New())))
		require.NoError(t, repo.Create(ctx, billing.NewLedgerPeriod(1, uuid.New())))

		latest, err := repo.FindLatest(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(1), latest.SequenceNumber)
		assert.True(t, latest.IsOpen())
	})

	t.Run("duplicate sequence number conflicts", func(t *testing.T) {
		err := repo.Create(ctx, billing.NewLedgerPeriod(1, uuid.New()))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("Update persists closing", func(t *testing.T) {
		period, err := repo.FindLatest(ctx)
		require.NoError(t, err)
		require.NoError(t, period.Close(time.Now()))
		period.AggregateTotal = decimal.RequireFromString("27.50")

		require.NoError(t, repo.Update(ctx, period))

		reloaded, err := repo.FindByID(ctx, period.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.IsOpen())
		assert.True(t, reloaded.AggregateTotal.Equal(decimal.RequireFromString("27.50")))
	})

	t.Run("Update of unknown period returns not found", func(t *testing.T) {
		ghost := billing.NewLedgerPeriod(99, uuid.New())
		err := repo.Update(ctx, ghost)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormInvoiceRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	periodA := uuid.New()
	periodB := uuid.New()
	payer := billing.PayerKey{Kind: billing.PayerKindMember, ID: uuid.New(), Name: "Ada"}

	newInvoiceWithLine := func(periodID uuid.UUID, itemsTotal string) *billing.Invoice {
		inv := billing.NewInvoice(periodID, payer,
			decimal.RequireFromString(itemsTotal), decimal.Zero, decimal.Zero)
		inv.Lines = []billing.InvoiceLine{{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			ItemName:  "Club-Mate",
			Quantity:  5,
			UnitPrice: decimal.RequireFromString("1.50"),
			LineTotal: decimal.RequireFromString("7.50"),
		}}
		return inv
	}

	t.Run("CreateWithLines round-trips invoice and lines", func(t *testing.T) {
		inv := newInvoiceWithLine(periodA, "7.50")

		require.NoError(t, repo.CreateWithLines(ctx, inv))

		loaded, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, payer.ID, loaded.PayerID)
		require.Len(t, loaded.Lines, 1)
		assert.Equal(t, int64(5), loaded.Lines[0].Quantity)
		assert.True(t, loaded.Lines[0].LineTotal.Equal(decimal.RequireFromString("7.50")))
	})

	t.Run("second invoice for same payer and period conflicts", func(t *testing.T) {
		err := repo.CreateWithLines(ctx, newInvoiceWithLine(periodA, "1.00"))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("SumOutstandingByPayer excludes the given period and paid invoices", func(t *testing.T) {
		other := newInvoiceWithLine(periodB, "10.00")
		require.NoError(t, repo.CreateWithLines(ctx, other))

		// Outstanding from periodA only, viewed from periodB.
		sum, err := repo.SumOutstandingByPayer(ctx, payer.ID, periodB)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("7.50")), "got %s", sum)

		// Paying the periodA invoice clears the carried balance.
		invoices, err := repo.FindByPeriod(ctx, periodA)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		require.NoError(t, invoices[0].SetStatus(billing.InvoiceStatusPaid, time.Now()))
		require.NoError(t, repo.Save(ctx, &invoices[0]))

		sum, err = repo.SumOutstandingByPayer(ctx, payer.ID, periodB)
		require.NoError(t, err)
		assert.True(t, sum.IsZero(), "got %s", sum)
	})

	t.Run("Save persists status and paidAt", func(t *testing.T) {
		invoices, err := repo.FindByPeriod(ctx, periodA)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, billing.InvoiceStatusPaid, invoices[0].Status)
		assert.NotNil(t, invoices[0].PaidAt)
	})

	t.Run("FindByID of unknown invoice returns not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormArtifactRepository(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormArtifactRepository(db)
	ctx := context.Background()

	ownerID := uuid.New()

	t.Run("FindByOwner on empty cache returns not found", func(t *testing.T) {
		_, err := repo.FindByOwner(ctx, billing.ArtifactOwnerPeriod, ownerID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("Create and FindByOwner round-trip", func(t *testing.T) {
		artifact := billing.NewExportArtifact(billing.ArtifactOwnerPeriod, ownerID,
			"exports/periods/x.csv", "https://storage/exports/periods/x.csv", "Invoice_1_Jan_2026.csv", 420)

		require.NoError(t, repo.Create(ctx, artifact))

		loaded, err := repo.FindByOwner(ctx, billing.ArtifactOwnerPeriod, ownerID)
		require.NoError(t, err)
		assert.Equal(t, artifact.StorageKey, loaded.StorageKey)
		assert.Equal(t, int64(420), loaded.FileSize)
	})

	t.Run("duplicate owner conflicts", func(t *testing.T) {
		duplicate := billing.NewExportArtifact(billing.ArtifactOwnerPeriod, ownerID,
			"exports/periods/y.csv", "https://storage/exports/periods/y.csv", "y.csv", 1)
		err := repo.Create(ctx, duplicate)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("same owner id under other type is distinct", func(t *testing.T) {
		other := billing.NewExportArtifact(billing.ArtifactOwnerInvoice, ownerID,
			"exports/invoices/z.pdf", "https://storage/exports/invoices/z.pdf", "z.pdf", 2)
		require.NoError(t, repo.Create(ctx, other))
	})

	t.Run("DeleteByOwner removes the entry and is idempotent", func(t *testing.T) {
		require.NoError(t, repo.DeleteByOwner(ctx, billing.ArtifactOwnerPeriod, ownerID))

		_, err := repo.FindByOwner(ctx, billing.ArtifactOwnerPeriod, ownerID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		require.NoError(t, repo.DeleteByOwner(ctx, billing.ArtifactOwnerPeriod, ownerID))
	})
}
