// Package membership manages plans, generated fees (aidat), installments and
// the payments recorded against them.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPlanNotFound   = errors.New("üyelik planı bulunamadı")
	ErrPlanInactive   = errors.New("üyelik planı aktif değil")
	ErrPlanInUse      = errors.New("plana bağlı aidatlar var, plan silinemez")
	ErrDuplicatePlan  = errors.New("bu isimde bir plan zaten var")
	ErrEmptyPlanName  = errors.New("plan adı boş olamaz")
	ErrUserNotFound   = errors.New("kullanıcı bulunamadı")
	ErrUserInactive   = errors.New("kullanıcı aktif değil")
	ErrNoUsers        = errors.New("en az bir kullanıcı seçilmeli")
	ErrFeeNotFound    = errors.New("aidat bulunamadı")
	ErrFeeAlreadyPaid = errors.New("bu aidat zaten ödenmiş")
	ErrBatchNotFound  = errors.New("aidat grubu bulunamadı")
	ErrBatchHasPaid   = errors.New("grupta ödenmiş aidat var, grup silinemez")
	ErrInvalidAmount  = errors.New("tutar sıfırdan büyük olmalı")
	ErrInvalidPayment = errors.New("geçersiz ödeme tipi")
)

// Actor is the user recorded as the author of a change.
type Actor struct {
	UserID uint
	Name   string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ----------------------------------------
// PLANLAR
// ----------------------------------------

type PlanInput struct {
	Name         string
	Description  string
	Amount       float64
	PeriodMonths int
	IsActive     bool
}

type PlanUpdate struct {
	Name         *string
	Description  *string
	Amount       *float64
	PeriodMonths *int
	IsActive     *bool
}

func (s *Service) ListPlans(ctx context.Context, onlyActive bool) ([]models.MembershipPlan, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if onlyActive {
		q = q.Where("is_active = ?", true)
	}
	var plans []models.MembershipPlan
	return plans, q.Find(&plans).Error
}

func (s *Service) GetPlan(ctx context.Context, id uint) (*models.MembershipPlan, error) {
	return findPlan(s.db.WithContext(ctx), id)
}

func (s *Service) CreatePlan(ctx context.Context, actor Actor, in PlanInput) (*models.MembershipPlan, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	plan := models.MembershipPlan{
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Amount:       roundMoney(in.Amount),
		PeriodMonths: in.PeriodMonths,
		IsActive:     in.IsActive,
	}
	if plan.Name == "" {
		return nil, ErrEmptyPlanName
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUniquePlanName(tx, plan.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePlan
			}
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "membership_plan",
			EntityID:    plan.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Üyelik planı oluşturuldu: %s", plan.Name),
			After:       plan,
		})
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, actor Actor, id uint, in PlanUpdate) (*models.MembershipPlan, error) {
	var plan *models.MembershipPlan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findPlan(tx, id)
		if err != nil {
			return err
		}
		before := *p

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrEmptyPlanName
			}
			if err := requireUniquePlanName(tx, name, id); err != nil {
				return err
			}
			p.Name = name
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if in.Amount != nil {
			if *in.Amount <= 0 {
				return ErrInvalidAmount
			}
			p.Amount = roundMoney(*in.Amount)
		}
		if in.PeriodMonths != nil {
			p.PeriodMonths = *in.PeriodMonths
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}

		if err := tx.Model(&models.MembershipPlan{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":          p.Name,
			"description":   p.Description,
			"amount":        p.Amount,
			"period_months": p.PeriodMonths,
			"is_active":     p.IsActive,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePlan
			}
			return err
		}
		plan = p
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "membership_plan",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Üyelik planı güncellendi: %s", p.Name),
			Before:      before,
			After:       p,
		})
	})
	return plan, err
}

// DeletePlan refuses while fees or automatic rules still reference the plan.
func (s *Service) DeletePlan(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := findPlan(tx, id)
		if err != nil {
			return err
		}

		var fees, rules int64
		if err := tx.Model(&models.MembershipFee{}).Where("plan_id = ?", id).Count(&fees).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.AutomaticFeeRule{}).Where("plan_id = ?", id).Count(&rules).Error; err != nil {
			return err
		}
		if fees > 0 || rules > 0 {
			return ErrPlanInUse
		}

		if err := tx.Delete(plan).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "membership_plan",
			EntityID:    plan.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Üyelik planı silindi: %s", plan.Name),
			Before:      plan,
		})
	})
}

// ----------------------------------------
// AİDAT OLUŞTURMA
// ----------------------------------------

type FeeRequest struct {
	PlanID      uint
	DueDate     time.Time
	PaymentType models.PaymentType
	Notes       string
}

// CreateFee generates the fees of one user for plan: a single fee for
// full_payment, plan.PeriodMonths monthly installments otherwise. The batch
// and all of its fees are written in one transaction.
func (s *Service) CreateFee(ctx context.Context, actor Actor, userID uint, req FeeRequest) (*models.FeeBatch, error) {
	var batch *models.FeeBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := activePlan(tx, req.PlanID)
		if err != nil {
			return err
		}
		if err := requireActiveUsers(tx, []uint{userID}); err != nil {
			return err
		}
		batch, err = createFeeTx(ctx, tx, actor, plan, userID, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// CreateBulkFees runs CreateFee for every user in one transaction; a failure
// for any user rolls back the whole call.
func (s *Service) CreateBulkFees(ctx context.Context, actor Actor, userIDs []uint, req FeeRequest) ([]models.FeeBatch, error) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil, ErrNoUsers
	}

	var batches []models.FeeBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plan, err := activePlan(tx, req.PlanID)
		if err != nil {
			return err
		}
		if err := requireActiveUsers(tx, ids); err != nil {
			return err
		}
		for _, uid := range ids {
			b, err := createFeeTx(ctx, tx, actor, plan, uid, req)
			if err != nil {
				return fmt.Errorf("kullanıcı #%d: %w", uid, err)
			}
			batches = append(batches, *b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func createFeeTx(ctx context.Context, tx *gorm.DB, actor Actor, plan *models.MembershipPlan, userID uint, req FeeRequest) (*models.FeeBatch, error) {
	var amounts []decimal.Decimal
	switch req.PaymentType {
	case models.PaymentTypeFullPayment:
		amounts = []decimal.Decimal{decimal.NewFromFloat(plan.Amount).Round(2)}
	case models.PaymentTypeInstallments:
		amounts = SplitInstallments(decimal.NewFromFloat(plan.Amount), plan.PeriodMonths)
	default:
		return nil, ErrInvalidPayment
	}
	if len(amounts) == 0 {
		return nil, ErrInvalidAmount
	}

	n := len(amounts)
	due := truncateDay(req.DueDate)
	notes := strings.TrimSpace(req.Notes)

	batch := models.FeeBatch{
		UserID:           userID,
		PlanID:           plan.ID,
		PaymentType:      req.PaymentType,
		InstallmentCount: n,
		TotalAmount:      plan.Amount,
		CreatedBy:        actor.UserID,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, err
	}

	fees := make([]models.MembershipFee, n)
	for i, amount := range amounts {
		note := notes
		if req.PaymentType == models.PaymentTypeInstallments {
			note = installmentNote(i+1, n)
			if notes != "" {
				note += " - " + notes
			}
		}
		fees[i] = models.MembershipFee{
			UserID:           userID,
			PlanID:           plan.ID,
			BatchID:          &batch.ID,
			InstallmentNo:    i + 1,
			InstallmentCount: n,
			Amount:           amount.InexactFloat64(),
			DueDate:          AddMonthsClamped(due, i),
			Status:           models.FeePending,
			Notes:            note,
		}
	}
	if err := tx.Create(&fees).Error; err != nil {
		return nil, err
	}
	batch.Fees = fees

	if err := audit.WriteLog(ctx, tx, audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  "fee_batch",
		EntityID:    batch.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("%s planından %d aidat oluşturuldu (kullanıcı #%d)", plan.Name, n, userID),
	}); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ----------------------------------------
// AİDAT SORGULAMA / GÜNCELLEME
// ----------------------------------------

type FeeFilter struct {
	UserID  uint
	PlanID  uint
	BatchID uint
	Status  models.FeeStatus
	Overdue bool
	From    *time.Time
	To      *time.Time
}

func (f FeeFilter) apply(q *gorm.DB, now time.Time) *gorm.DB {
	if f.UserID != 0 {
		q = q.Where("membership_fees.user_id = ?", f.UserID)
	}
	if f.PlanID != 0 {
		q = q.Where("membership_fees.plan_id = ?", f.PlanID)
	}
	if f.BatchID != 0 {
		q = q.Where("membership_fees.batch_id = ?", f.BatchID)
	}
	if f.Status != "" {
		q = q.Where("membership_fees.status = ?", f.Status)
	}
	if f.Overdue {
		q = q.Where("membership_fees.status = ? AND membership_fees.due_date < ?", models.FeePending, truncateDay(now))
	}
	if f.From != nil {
		q = q.Where("membership_fees.due_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("membership_fees.due_date <= ?", *f.To)
	}
	return q
}

// ListFees returns one page of fees matching f together with the total count.
func (s *Service) ListFees(ctx context.Context, f FeeFilter, page func(*gorm.DB) *gorm.DB) ([]models.MembershipFee, int64, error) {
	now := time.Now()
	var total int64
	if err := f.apply(s.db.WithContext(ctx).Model(&models.MembershipFee{}), now).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var fees []models.MembershipFee
	q := f.apply(s.db.WithContext(ctx), now).
		Preload("User").
		Preload("Plan").
		Order("membership_fees.due_date ASC, membership_fees.id ASC")
	if page != nil {
		q = q.Scopes(page)
	}
	if err := q.Find(&fees).Error; err != nil {
		return nil, 0, err
	}
	return fees, total, nil
}

// OverdueFees lists pending fees whose due date is before today.
func (s *Service) OverdueFees(ctx context.Context, now time.Time) ([]models.MembershipFee, error) {
	var fees []models.MembershipFee
	err := FeeFilter{Overdue: true}.apply(s.db.WithContext(ctx), now).
		Preload("User").
		Preload("Plan").
		Order("membership_fees.due_date ASC").
		Find(&fees).Error
	return fees, err
}

func (s *Service) GetFee(ctx context.Context, id uint) (*models.MembershipFee, error) {
	var fee models.MembershipFee
	err := s.db.WithContext(ctx).Preload("User").Preload("Plan").First(&fee, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

type FeeUpdate struct {
	Amount  *float64
	DueDate *time.Time
	LateFee *float64
	Notes   *string
}

// UpdateFee edits a pending fee; paid fees are immutable.
func (s *Service) UpdateFee(ctx context.Context, actor Actor, id uint, in FeeUpdate) (*models.MembershipFee, error) {
	var fee models.MembershipFee
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockFee(tx, id, &fee); err != nil {
			return err
		}
		if fee.Status == models.FeePaid {
			return ErrFeeAlreadyPaid
		}
		before := fee

		if in.Amount != nil {
			if *in.Amount <= 0 {
				return ErrInvalidAmount
			}
			fee.Amount = roundMoney(*in.Amount)
		}
		if in.DueDate != nil {
			fee.DueDate = truncateDay(*in.DueDate)
		}
		if in.LateFee != nil {
			if *in.LateFee < 0 {
				return ErrInvalidAmount
			}
			fee.LateFee = roundMoney(*in.LateFee)
		}
		if in.Notes != nil {
			fee.Notes = strings.TrimSpace(*in.Notes)
		}

		if err := tx.Model(&models.MembershipFee{}).Where("id = ?", id).Updates(map[string]interface{}{
			"amount":   fee.Amount,
			"due_date": fee.DueDate,
			"late_fee": fee.LateFee,
			"notes":    fee.Notes,
		}).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "membership_fee",
			EntityID:    fee.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Aidat güncellendi (#%d)", fee.ID),
			Before:      before,
			After:       fee,
		})
	})
	if err != nil {
		return nil, err
	}
	return &fee, nil
}

// ApplyLateFee sets the late fee of a pending fee.
func (s *Service) ApplyLateFee(ctx context.Context, actor Actor, id uint, lateFee float64) (*models.MembershipFee, error) {
	return s.UpdateFee(ctx, actor, id, FeeUpdate{LateFee: &lateFee})
}

func (s *Service) DeleteFee(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fee models.MembershipFee
		if err := lockFee(tx, id, &fee); err != nil {
			return err
		}
		if fee.Status == models.FeePaid {
			return ErrFeeAlreadyPaid
		}
		if err := tx.Delete(&fee).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "membership_fee",
			EntityID:    fee.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Aidat silindi (#%d, %.2f TL)", fee.ID, fee.Amount),
			Before:      fee,
		})
	})
}

// DeleteBatch removes a batch and all of its fees, provided none is paid.
func (s *Service) DeleteBatch(ctx context.Context, actor Actor, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch models.FeeBatch
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBatchNotFound
			}
			return err
		}

		var paid int64
		if err := tx.Model(&models.MembershipFee{}).
			Where("batch_id = ? AND status = ?", id, models.FeePaid).
			Count(&paid).Error; err != nil {
			return err
		}
		if paid > 0 {
			return ErrBatchHasPaid
		}

		if err := tx.Where("batch_id = ?", id).Delete(&models.MembershipFee{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&batch).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "fee_batch",
			EntityID:    batch.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Aidat grubu silindi (#%d, %d taksit)", batch.ID, batch.InstallmentCount),
			Before:      batch,
		})
	})
}

func (s *Service) GetBatch(ctx context.Context, id uint) (*models.FeeBatch, error) {
	var batch models.FeeBatch
	err := s.db.WithContext(ctx).
		Preload("Fees", func(db *gorm.DB) *gorm.DB { return db.Order("installment_no ASC") }).
		First(&batch, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ----------------------------------------
// YARDIMCILAR
// ----------------------------------------

func findPlan(db *gorm.DB, id uint) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	if err := db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func activePlan(db *gorm.DB, id uint) (*models.MembershipPlan, error) {
	plan, err := findPlan(db, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}
	return plan, nil
}

func requireUniquePlanName(tx *gorm.DB, name string, exceptID uint) error {
	var n int64
	if err := tx.Model(&models.MembershipPlan{}).Where("name = ? AND id <> ?", name, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrDuplicatePlan
	}
	return nil
}

func requireActiveUsers(tx *gorm.DB, ids []uint) error {
	var users []models.User
	if err := tx.Select("id", "is_active").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	if len(users) != len(ids) {
		return ErrUserNotFound
	}
	for _, u := range users {
		if !u.IsActive {
			return fmt.Errorf("kullanıcı #%d: %w", u.ID, ErrUserInactive)
		}
	}
	return nil
}

func lockFee(tx *gorm.DB, id uint, fee *models.MembershipFee) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(fee, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFeeNotFound
	}
	return err
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func roundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
