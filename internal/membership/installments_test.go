package membership

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitInstallmentsSumsExactly(t *testing.T) {
	tests := []struct {
		total string
		n     int
		last  string
	}{
		{"1200", 12, "100"},
		{"1000", 1, "1000"},
		{"1000", 3, "333.34"},
		{"1000", 6, "166.7"},
		{"1000", 12, "83.37"},
		{"99.99", 12, "8.36"},
	}

	for _, tt := range tests {
		total := decimal.RequireFromString(tt.total)
		parts := SplitInstallments(total, tt.n)
		require.Len(t, parts, tt.n)

		sum := decimal.Zero
		for _, p := range parts {
			sum = sum.Add(p)
			assert.True(t, p.Sub(parts[0]).Abs().LessThan(decimal.NewFromInt(1)),
				"%s/%d: installment %s too far from %s", tt.total, tt.n, p, parts[0])
		}
		assert.True(t, sum.Equal(total), "%s/%d: sum %s", tt.total, tt.n, sum)
		assert.True(t, parts[tt.n-1].Equal(decimal.RequireFromString(tt.last)),
			"%s/%d: last %s", tt.total, tt.n, parts[tt.n-1])
	}

	assert.Nil(t, SplitInstallments(decimal.NewFromInt(10), 0))
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2027, time.January, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 1))
	assert.Equal(t, time.Date(2027, time.March, 31, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 2))
	assert.Equal(t, time.Date(2027, time.April, 30, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 3))
	assert.Equal(t, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 13))

	mid := time.Date(2026, time.November, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, time.February, 15, 0, 0, 0, 0, time.UTC), AddMonthsClamped(mid, 3))
	assert.Equal(t, mid, AddMonthsClamped(mid, 0))
}
