package membership

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SplitInstallments divides total into n amounts of two decimals. Every
// installment but the last gets total/n truncated to cents; the last absorbs
// the remainder, so the parts always sum to total.
func SplitInstallments(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	total = total.Round(2)
	count := decimal.NewFromInt(int64(n))
	part := total.Div(count).Truncate(2)

	out := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		out[i] = part
	}
	out[n-1] = total.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))
	return out
}

// AddMonthsClamped adds months to t, keeping the day of month when it exists
// and falling back to the last day of the target month otherwise
// (31 Jan + 1 month = 28/29 Feb).
func AddMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func installmentNote(i, n int) string {
	return fmt.Sprintf("%d. Taksit (%d taksit)", i, n)
}
