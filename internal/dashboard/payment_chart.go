package dashboard

import (
	"context"
	"sort"
	"time"

	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

type ChartPoint struct {
	Label        string  `json:"label"` // gün / hafta başlangıcı / ay başlangıcı
	Cash         float64 `json:"cash"`
	BankTransfer float64 `json:"bank_transfer"`
	CreditCard   float64 `json:"credit_card"`
	Other        float64 `json:"other"`
	Total        float64 `json:"total"`
}

func (p *ChartPoint) add(method models.PaymentMethod, amount float64) {
	switch method {
	case models.PaymentCash:
		p.Cash += amount
	case models.PaymentBankTransfer:
		p.BankTransfer += amount
	case models.PaymentCreditCard:
		p.CreditCard += amount
	default:
		p.Other += amount
	}
	p.Total += amount
}

type PaymentChart struct {
	Period      Period       `json:"period"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Points      []ChartPoint `json:"points"`
	GrandTotals ChartPoint   `json:"grand_totals"`
}

// DefaultCount is the number of buckets shown when none is requested.
func DefaultCount(p Period) int {
	switch p {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

// bucketStart maps t to the first day of its bucket. Weeks start on Monday.
func bucketStart(p Period, t time.Time) time.Time {
	d := today(t)
	switch p {
	case PeriodWeekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func step(p Period, t time.Time, n int) time.Time {
	switch p {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Payments sums collected payments per method for the last count buckets
// ending with the bucket that contains now. Empty buckets are included.
func Payments(ctx context.Context, db *gorm.DB, p Period, count int, now time.Time) (*PaymentChart, error) {
	last := bucketStart(p, now)
	start := step(p, last, -(count - 1))
	end := step(p, last, 1)

	var rows []struct {
		PaymentDate time.Time
		Method      models.PaymentMethod
		Amount      float64
	}
	if err := db.WithContext(ctx).Model(&models.Payment{}).
		Select("payment_date, method, amount").
		Where("payment_date >= ? AND payment_date < ?", start, end).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*ChartPoint, count)
	for b := start; b.Before(end); b = step(p, b, 1) {
		buckets[b] = &ChartPoint{Label: b.Format("2006-01-02")}
	}

	chart := &PaymentChart{
		Period: p,
		From:   start.Format("2006-01-02"),
		To:     end.AddDate(0, 0, -1).Format("2006-01-02"),
	}
	for _, r := range rows {
		if pt, ok := buckets[bucketStart(p, r.PaymentDate)]; ok {
			pt.add(r.Method, r.Amount)
			chart.GrandTotals.add(r.Method, r.Amount)
		}
	}

	chart.Points = make([]ChartPoint, 0, len(buckets))
	for _, pt := range buckets {
		chart.Points = append(chart.Points, *pt)
	}
	sort.Slice(chart.Points, func(i, j int) bool { return chart.Points[i].Label < chart.Points[j].Label })
	return chart, nil
}
