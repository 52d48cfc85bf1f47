package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPurchaseEvent(t *testing.T) {
	payerID := uuid.New()
	price := decimal.RequireFromString("1.50")

	t.Run("derives total from quantity and unit price", func(t *testing.T) {
		event, err := NewPurchaseEvent(payerID, "Ada", "", "Club-Mate", 2, price, time.Now())

		require.NoError(t, err)
		assert.True(t, event.Total.Equal(decimal.RequireFromString("3.00")))
		assert.False(t, event.Billed)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewPurchaseEvent(payerID, "Ada", "", "Club-Mate", 0, price, time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects missing payer", func(t *testing.T) {
		_, err := NewPurchaseEvent(uuid.Nil, "Ada", "", "Club-Mate", 1, price, time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects empty item name", func(t *testing.T) {
		_, err := NewPurchaseEvent(payerID, "Ada", "", "", 1, price, time.Now())
		assert.Error(t, err)
	})
}

func TestPurchaseEventValidate(t *testing.T) {
	t.Run("rejects inconsistent total", func(t *testing.T) {
		event, err := NewPurchaseEvent(uuid.New(), "Ada", "", "Club-Mate", 2, decimal.RequireFromString("1.50"), time.Now())
		require.NoError(t, err)

		event.Total = decimal.RequireFromString("4.00")

		assert.Error(t, event.Validate())
	})
}

func TestPurchaseEventPartitionKey(t *testing.T) {
	payerID := uuid.New()

	t.Run("personal purchase bills the individual payer", func(t *testing.T) {
		event, err := NewPurchaseEvent(payerID, "Ada", "", "Club-Mate", 1, decimal.RequireFromString("1.50"), time.Now())
		require.NoError(t, err)

		key := event.PartitionKey()

		assert.Equal(t, PayerKindMember, key.Kind)
		assert.Equal(t, payerID, key.ID)
		assert.Equal(t, "Ada", key.Name)
	})

	t.Run("group purchase bills the synthetic group payer", func(t *testing.T) {
		event, err := NewPurchaseEvent(payerID, "Ada", "Fall Social", "Keg", 1, decimal.RequireFromString("20.00"), time.Now())
		require.NoError(t, err)

		key := event.PartitionKey()

		assert.Equal(t, PayerKindGroup, key.Kind)
		assert.Equal(t, GroupPayerKey("Fall Social").ID, key.ID)
		assert.NotEqual(t, payerID, key.ID)
	})
}
