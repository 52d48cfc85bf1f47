package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPeriodClose(t *testing.T) {
	t.Run("new period is open", func(t *testing.T) {
		period := NewLedgerPeriod(0, uuid.New())

		assert.True(t, period.IsOpen())
		assert.True(t, period.AggregateTotal.IsZero())
	})

	t.Run("closes exactly once", func(t *testing.T) {
		period := NewLedgerPeriod(3, uuid.New())
		now := time.Now()

		require.NoError(t, period.Close(now))

		assert.False(t, period.IsOpen())
		require.NotNil(t, period.ClosedAt)
		assert.Equal(t, now, *period.ClosedAt)

		err := period.Close(now.Add(time.Minute))
		assert.Error(t, err)
		assert.Equal(t, now, *period.ClosedAt)
	})
}
