package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRuleNotFound  = errors.New("otomatik aidat kuralı bulunamadı")
	ErrInvalidDay    = errors.New("ayın günü 1 ile 28 arasında olmalı")
	ErrRuleInactive  = errors.New("otomatik aidat kuralı aktif değil")
	ErrAlreadyRanFor = errors.New("kural bu dönem için zaten çalıştırıldı")
)

const periodLayout = "2006-01"

type RuleInput struct {
	PlanID     uint
	DayOfMonth int
	IsActive   bool
}

type RuleUpdate struct {
	PlanID     *uint
	DayOfMonth *int
	IsActive   *bool
}

func (s *Service) ListRules(ctx context.Context) ([]models.AutomaticFeeRule, error) {
	var rules []models.AutomaticFeeRule
	err := s.db.WithContext(ctx).Preload("Plan").Order("id ASC").Find(&rules).Error
	return rules, err
}

func (s *Service) CreateRule(ctx context.Context, in RuleInput) (*models.AutomaticFeeRule, error) {
	if in.DayOfMonth < 1 || in.DayOfMonth > 28 {
		return nil, ErrInvalidDay
	}
	db := s.db.WithContext(ctx)
	if _, err := findPlan(db, in.PlanID); err != nil {
		return nil, err
	}
	rule := models.AutomaticFeeRule{PlanID: in.PlanID, DayOfMonth: in.DayOfMonth, IsActive: in.IsActive}
	if err := db.Create(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, id uint, in RuleUpdate) (*models.AutomaticFeeRule, error) {
	db := s.db.WithContext(ctx)
	rule, err := findRule(db, id)
	if err != nil {
		return nil, err
	}
	if in.PlanID != nil {
		if _, err := findPlan(db, *in.PlanID); err != nil {
			return nil, err
		}
		rule.PlanID = *in.PlanID
	}
	if in.DayOfMonth != nil {
		if *in.DayOfMonth < 1 || *in.DayOfMonth > 28 {
			return nil, ErrInvalidDay
		}
		rule.DayOfMonth = *in.DayOfMonth
	}
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
	if err := db.Model(&models.AutomaticFeeRule{}).Where("id = ?", id).Updates(map[string]interface{}{
		"plan_id":      rule.PlanID,
		"day_of_month": rule.DayOfMonth,
		"is_active":    rule.IsActive,
	}).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AutomaticFeeRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// RunRule bills the rule's plan once to every active member for the period of
// now. Members who already have a fee of that plan due in the period are
// skipped. It returns the number of fees created.
func (s *Service) RunRule(ctx context.Context, actor Actor, id uint, now time.Time) (int, error) {
	period := now.UTC().Format(periodLayout)
	created := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rule models.AutomaticFeeRule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rule, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRuleNotFound
			}
			return err
		}
		if !rule.IsActive {
			return ErrRuleInactive
		}
		if rule.LastRunPeriod == period {
			return ErrAlreadyRanFor
		}
		plan, err := activePlan(tx, rule.PlanID)
		if err != nil {
			return err
		}

		start := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		due := start.AddDate(0, 0, rule.DayOfMonth-1)

		var userIDs []uint
		if err := tx.Model(&models.User{}).
			Where("role = ? AND is_active = ?", models.RoleMember, true).
			Where("id NOT IN (?)", tx.Model(&models.MembershipFee{}).
				Select("user_id").
				Where("plan_id = ? AND due_date >= ? AND due_date < ?", plan.ID, start, end)).
			Order("id ASC").
			Pluck("id", &userIDs).Error; err != nil {
			return err
		}

		for _, uid := range userIDs {
			if _, err := createFeeTx(ctx, tx, actor, plan, uid, FeeRequest{
				PlanID:      plan.ID,
				DueDate:     due,
				PaymentType: models.PaymentTypeFullPayment,
				Notes:       fmt.Sprintf("Otomatik aidat (%s)", period),
			}); err != nil {
				return err
			}
			created++
		}

		if err := tx.Model(&rule).Update("last_run_period", period).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "automatic_fee_rule",
			EntityID:    rule.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Otomatik aidat çalıştırıldı: %s, %d aidat", period, created),
		})
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// RunDueRules runs every active rule whose day has come in the current period
// and that has not run for it yet. Rules on inactive plans are skipped. A
// failing rule does not stop the others; the failures are joined.
func (s *Service) RunDueRules(ctx context.Context, now time.Time) (int, error) {
	period := now.UTC().Format(periodLayout)
	db := s.db.WithContext(ctx)
	var rules []models.AutomaticFeeRule
	if err := db.
		Where("is_active = ? AND day_of_month <= ? AND (last_run_period IS NULL OR last_run_period <> ?)",
			true, now.UTC().Day(), period).
		Where("plan_id IN (?)", db.Model(&models.MembershipPlan{}).Select("id").Where("is_active = ?", true)).
		Order("id ASC").
		Find(&rules).Error; err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, r := range rules {
		n, err := s.RunRule(ctx, Actor{Name: "sistem"}, r.ID, now)
		switch {
		case err == nil:
			total += n
		case errors.Is(err, ErrAlreadyRanFor), errors.Is(err, ErrPlanInactive), errors.Is(err, ErrRuleInactive):
		default:
			slog.Error("otomatik aidat kuralı çalıştırılamadı", "rule_id", r.ID, "error", err)
			errs = append(errs, fmt.Errorf("kural #%d: %w", r.ID, err))
		}
	}
	return total, errors.Join(errs...)
}

// StartScheduler runs RunDueRules every interval until ctx is cancelled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := s.RunDueRules(ctx, now)
				if err != nil {
					slog.Error("otomatik aidat çalıştırılamadı", "error", err)
				}
				if n > 0 {
					slog.Info("otomatik aidatlar oluşturuldu", "count", n)
				}
			}
		}
	}()
}

func findRule(db *gorm.DB, id uint) (*models.AutomaticFeeRule, error) {
	var rule models.AutomaticFeeRule
	if err := db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}
