package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	appbilling "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/clubledger/backend/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type artifactFixture struct {
	db        *persistence.Database
	events    billing.PurchaseEventRepository
	periods   billing.PeriodRepository
	invoices  billing.InvoiceRepository
	artifacts billing.ArtifactRepository
	store     *storage.MemoryObjectStorage
	closing   *appbilling.ClosingService
}

func newArtifactFixture(t *testing.T) *artifactFixture {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, persistence.AutoMigrate(gdb))

	db := persistence.NewDatabaseFromGorm(gdb)
	f := &artifactFixture{
		db:        db,
		events:    persistence.NewGormPurchaseEventRepository(gdb),
		periods:   persistence.NewGormPeriodRepository(gdb),
		invoices:  persistence.NewGormInvoiceRepository(gdb),
		artifacts: persistence.NewGormArtifactRepository(gdb),
		store:     storage.NewMemoryObjectStorage(),
	}
	f.closing = appbilling.NewClosingService(db, 0, nil, nil)
	return f
}

func (f *artifactFixture) artifactService(store appbilling.ObjectStorage) *appbilling.ArtifactService {
	return appbilling.NewArtifactService(f.artifacts, f.periods, f.invoices, store,
		appbilling.ArtifactServiceConfig{
			PaymentLinkBase:   "https://pay.example.org/invoices",
			VisibilityRetries: 3,
			VisibilityBackoff: time.Millisecond,
		}, nil, nil)
}

// closePeriod seeds a small event set and runs one closing, returning
// the new period's ID.
func (f *artifactFixture) closePeriod(t *testing.T) uuid.UUID {
	ctx := context.Background()
	ada := uuid.New()
	bob := uuid.New()

	for _, seed := range []struct {
		payer      uuid.UUID
		name       string
		group      string
		item       string
		qty        int64
		price      string
	}{
		{ada, "Ada", "", "Club-Mate", 5, "1.50"},
		{bob, "Bob", "Fall Social", "Beer", 10, "2.00"},
	} {
		event, err := billing.NewPurchaseEvent(seed.payer, seed.name, seed.group,
			seed.item, seed.qty, decimal.RequireFromString(seed.price), time.Now())
		require.NoError(t, err)
		require.NoError(t, f.events.Save(ctx, event))
	}

	result, err := f.closing.CloseAndBill(ctx, uuid.New())
	require.NoError(t, err)
	require.True(t, result.PeriodCreated)
	return result.PeriodID
}

// invisibleStorage reports every object as absent, so uploads never
// become visible.
type invisibleStorage struct {
	*storage.MemoryObjectStorage
}

func (s *invisibleStorage) ObjectExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestArtifactService_PeriodExport(t *testing.T) {
	ctx := context.Background()

	t.Run("first call renders and uploads, second serves the cache", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		first, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		assert.False(t, first.WasExisting)
		assert.True(t, strings.HasPrefix(first.FileName, "Invoice_"))
		assert.True(t, strings.HasSuffix(first.FileName, ".csv"))
		require.Len(t, f.store.Keys(), 1)

		second, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		assert.True(t, second.WasExisting)
		assert.Equal(t, first.StorageURL, second.StorageURL)
		assert.Len(t, f.store.Keys(), 1, "cache hit uploads nothing")
	})

	t.Run("export content lists groups before members", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		result, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)

		data, ok := f.store.Get(f.store.Keys()[0])
		require.True(t, ok)
		content := string(data)

		lines := strings.Split(strings.TrimSpace(content), "\n")
		require.GreaterOrEqual(t, len(lines), 5)
		assert.True(t, strings.HasPrefix(lines[0], "Payer;"))
		assert.Contains(t, lines[0], "Beer")
		assert.Contains(t, lines[0], "Club-Mate")
		assert.True(t, strings.HasPrefix(lines[1], "Fall Social;"))
		assert.True(t, strings.HasPrefix(lines[2], "Ada;"))
		assert.Contains(t, content, "https://pay.example.org/invoices/")
		assert.Contains(t, content, "Unit price")
		assert.Contains(t, content, "Total")

		assert.Positive(t, result.FileSize)
	})

	t.Run("dangling cache row is dropped and regenerated", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		first, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		assert.False(t, first.WasExisting)

		// The object vanishes behind the cache's back.
		require.NoError(t, f.store.DeleteObject(ctx, f.store.Keys()[0]))

		healed, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		assert.False(t, healed.WasExisting, "a dangling row must not count as a hit")
		assert.Len(t, f.store.Keys(), 1)
	})

	t.Run("unknown period yields not found", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)

		_, err := svc.GetOrCreatePeriodExport(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("upload that never becomes visible times out", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(&invisibleStorage{f.store})
		periodID := f.closePeriod(t)

		_, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrStorageTimeout))
	})

	t.Run("lagging visibility is retried until the object appears", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		period, err := f.periods.FindByID(ctx, periodID)
		require.NoError(t, err)
		key := "exports/periods/" + periodID.String() + "/Invoice_" +
			period.CreatedAt.Format("2_Jan_2006") + ".csv"
		f.store.HideNextProbes(key, 2)

		result, err := svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		assert.False(t, result.WasExisting)
	})
}

func TestArtifactService_InvoiceDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("renders a PDF named after sequence and payer", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		invoices, err := f.invoices.FindByPeriod(ctx, periodID)
		require.NoError(t, err)
		require.Len(t, invoices, 2)

		var groupInvoice *billing.Invoice
		for i := range invoices {
			if invoices[i].PayerKind == billing.PayerKindGroup {
				groupInvoice = &invoices[i]
			}
		}
		require.NotNil(t, groupInvoice)

		result, err := svc.GetOrCreateInvoiceDocument(ctx, groupInvoice.ID)
		require.NoError(t, err)
		assert.False(t, result.WasExisting)
		assert.Equal(t, "Invoice_0_Fall_Social.pdf", result.FileName)

		data, ok := f.store.Get(f.store.Keys()[0])
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	})

	t.Run("period export and invoice document cache independently", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)
		periodID := f.closePeriod(t)

		invoices, err := f.invoices.FindByPeriod(ctx, periodID)
		require.NoError(t, err)
		require.NotEmpty(t, invoices)

		_, err = svc.GetOrCreatePeriodExport(ctx, periodID)
		require.NoError(t, err)
		_, err = svc.GetOrCreateInvoiceDocument(ctx, invoices[0].ID)
		require.NoError(t, err)

		assert.Len(t, f.store.Keys(), 2)
	})

	t.Run("unknown invoice yields not found", func(t *testing.T) {
		f := newArtifactFixture(t)
		svc := f.artifactService(f.store)

		_, err := svc.GetOrCreateInvoiceDocument(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}
