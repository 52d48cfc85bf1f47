package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("9.99"), EUR)

		require.NoError(t, err)
		assert.Equal(t, EUR, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("9.99")))
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.Zero, "")
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoneyEURFromFloat(3.00)
	b := NewMoneyEURFromFloat(4.50)

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.Equal(t, "7.50", sum.StringFixed(2))
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := b.Subtract(a)
		require.NoError(t, err)
		assert.Equal(t, "1.50", diff.StringFixed(2))
	})

	t.Run("multiply by int", func(t *testing.T) {
		assert.Equal(t, "9.00", a.MultiplyByInt(3).StringFixed(2))
	})

	t.Run("mismatched currencies fail", func(t *testing.T) {
		usd, err := NewMoney(decimal.NewFromInt(1), USD)
		require.NoError(t, err)

		_, err = a.Add(usd)
		assert.Error(t, err)
	})
}

func TestMoneyComparison(t *testing.T) {
	a := NewMoneyEURFromFloat(3.00)
	b := NewMoneyEURFromFloat(4.50)

	less, err := a.LessThan(b)
	require.NoError(t, err)
	assert.True(t, less)

	greater, err := b.GreaterThan(a)
	require.NoError(t, err)
	assert.True(t, greater)

	assert.True(t, a.Equals(NewMoneyEURFromFloat(3.00)))
	assert.False(t, a.Equals(b))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "27.50 EUR", NewMoneyEURFromFloat(27.5).String())
}

func TestMoneyScan(t *testing.T) {
	t.Run("scans string amount with default currency", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan("12.3400"))

		assert.True(t, m.Amount().Equal(decimal.RequireFromString("12.34")))
		assert.Equal(t, DefaultCurrency, m.Currency())
	})

	t.Run("nil scans to zero", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})
}
