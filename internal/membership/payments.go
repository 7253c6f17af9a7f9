package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

type PaymentInput struct {
	FeeID       uint
	Amount      float64
	Method      models.PaymentMethod
	PaymentDate *time.Time
	Notes       string
}

// RecordPayment inserts a payment and marks the fee paid. The fee row is
// locked first; a fee that is already paid is rejected without writing a
// payment.
func (s *Service) RecordPayment(ctx context.Context, actor Actor, in PaymentInput) (*models.Payment, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var payment *models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := payFeeTx(ctx, tx, actor, in)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// RecordBulkPayment pays every fee in feeIDs with its full amount plus late
// fee. One missing or already paid fee aborts the whole batch.
func (s *Service) RecordBulkPayment(ctx context.Context, actor Actor, feeIDs []uint, method models.PaymentMethod, notes string) ([]models.Payment, error) {
	if len(feeIDs) == 0 {
		return nil, ErrFeeNotFound
	}
	var payments []models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range feeIDs {
			p, err := payFeeTx(ctx, tx, actor, PaymentInput{FeeID: id, Method: method, Notes: notes})
			if err != nil {
				return fmt.Errorf("aidat #%d: %w", id, err)
			}
			payments = append(payments, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// payFeeTx pays one fee inside tx. A zero amount means the fee's total due.
func payFeeTx(ctx context.Context, tx *gorm.DB, actor Actor, in PaymentInput) (*models.Payment, error) {
	var fee models.MembershipFee
	if err := lockFee(tx, in.FeeID, &fee); err != nil {
		return nil, err
	}
	if fee.Status == models.FeePaid {
		return nil, ErrFeeAlreadyPaid
	}

	amount := in.Amount
	if amount == 0 {
		amount = fee.TotalDue()
	}
	method := in.Method
	if method == "" {
		method = models.PaymentCash
	}
	now := time.Now()
	paidAt := now
	if in.PaymentDate != nil {
		paidAt = *in.PaymentDate
	}

	payment := models.Payment{
		FeeID:       fee.ID,
		UserID:      fee.UserID,
		Amount:      roundMoney(amount),
		Method:      method,
		PaymentDate: paidAt,
		Notes:       strings.TrimSpace(in.Notes),
		RecordedBy:  actor.UserID,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}

	res := tx.Model(&models.MembershipFee{}).
		Where("id = ? AND status = ?", fee.ID, models.FeePending).
		Updates(map[string]interface{}{
			"status":    models.FeePaid,
			"paid_date": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrFeeAlreadyPaid
	}

	if err := audit.WriteLog(ctx, tx, audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  "payment",
		EntityID:    payment.ID,
		Action:      models.AuditActionPayment,
		Description: fmt.Sprintf("Ödeme alındı: %.2f TL (aidat #%d)", payment.Amount, fee.ID),
		After:       payment,
	}); err != nil {
		return nil, err
	}
	return &payment, nil
}

type PaymentFilter struct {
	UserID uint
	FeeID  uint
	Method models.PaymentMethod
	From   *time.Time
	To     *time.Time
}

func (f PaymentFilter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != 0 {
		q = q.Where("payments.user_id = ?", f.UserID)
	}
	if f.FeeID != 0 {
		q = q.Where("payments.fee_id = ?", f.FeeID)
	}
	if f.Method != "" {
		q = q.Where("payments.method = ?", f.Method)
	}
	if f.From != nil {
		q = q.Where("payments.payment_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("payments.payment_date < ?", f.To.AddDate(0, 0, 1))
	}
	return q
}

func (s *Service) ListPayments(ctx context.Context, f PaymentFilter, page func(*gorm.DB) *gorm.DB) ([]models.Payment, int64, error) {
	var total int64
	if err := f.apply(s.db.WithContext(ctx).Model(&models.Payment{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	q := f.apply(s.db.WithContext(ctx)).
		Preload("Fee").
		Order("payments.payment_date DESC, payments.id DESC")
	if page != nil {
		q = q.Scopes(page)
	}
	if err := q.Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Summary is the financial position of one member.
type Summary struct {
	UserID        uint       `json:"user_id"`
	TotalFees     float64    `json:"total_fees"`
	TotalPaid     float64    `json:"total_paid"`
	TotalDue      float64    `json:"total_due"`
	PendingCount  int64      `json:"pending_count"`
	PaidCount     int64      `json:"paid_count"`
	OverdueCount  int64      `json:"overdue_count"`
	OverdueAmount float64    `json:"overdue_amount"`
	NextDueDate   *time.Time `json:"next_due_date"`
}

func (s *Service) UserSummary(ctx context.Context, userID uint, now time.Time) (*Summary, error) {
	db := s.db.WithContext(ctx)
	today := truncateDay(now)
	sum := Summary{UserID: userID}

	fees := func() *gorm.DB { return db.Model(&models.MembershipFee{}).Where("user_id = ?", userID) }

	if err := fees().Select("COALESCE(SUM(amount + late_fee), 0)").Scan(&sum.TotalFees).Error; err != nil {
		return nil, err
	}
	if err := fees().Where("status = ?", models.FeePending).
		Select("COALESCE(SUM(amount + late_fee), 0)").Scan(&sum.TotalDue).Error; err != nil {
		return nil, err
	}
	if err := fees().Where("status = ?", models.FeePending).Count(&sum.PendingCount).Error; err != nil {
		return nil, err
	}
	if err := fees().Where("status = ?", models.FeePaid).Count(&sum.PaidCount).Error; err != nil {
		return nil, err
	}
	if err := fees().Where("status = ? AND due_date < ?", models.FeePending, today).Count(&sum.OverdueCount).Error; err != nil {
		return nil, err
	}
	if err := fees().Where("status = ? AND due_date < ?", models.FeePending, today).
		Select("COALESCE(SUM(amount + late_fee), 0)").Scan(&sum.OverdueAmount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Payment{}).Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").Scan(&sum.TotalPaid).Error; err != nil {
		return nil, err
	}

	var next models.MembershipFee
	err := fees().Where("status = ? AND due_date >= ?", models.FeePending, today).
		Order("due_date ASC").Limit(1).Find(&next).Error
	if err != nil {
		return nil, err
	}
	if next.ID != 0 {
		d := next.DueDate
		sum.NextDueDate = &d
	}

	sum.TotalFees = roundMoney(sum.TotalFees)
	sum.TotalDue = roundMoney(sum.TotalDue)
	sum.TotalPaid = roundMoney(sum.TotalPaid)
	sum.OverdueAmount = roundMoney(sum.OverdueAmount)
	return &sum, nil
}
