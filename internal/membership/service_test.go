package membership

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, Actor) {
	t.Helper()
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	return NewService(db), db, Actor{UserID: admin.ID, Name: "Admin"}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateFeeInstallments1200Over12(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Yıllık", 1200, 12)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	start := date(2026, time.January, 15)
	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID:      plan.ID,
		DueDate:     start,
		PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, batch.InstallmentCount)

	var fees []models.MembershipFee
	require.NoError(t, db.Where("batch_id = ?", batch.ID).Order("installment_no").Find(&fees).Error)
	require.Len(t, fees, 12)
	for i, f := range fees {
		assert.Equal(t, 100.0, f.Amount)
		assert.Equal(t, i+1, f.InstallmentNo)
		assert.Equal(t, models.FeePending, f.Status)
		assert.True(t, f.DueDate.Equal(start.AddDate(0, i, 0)), "taksit %d: %s", i+1, f.DueDate)
	}
	assert.Equal(t, "1. Taksit (12 taksit)", fees[0].Notes)
	assert.Equal(t, "12. Taksit (12 taksit)", fees[11].Notes)
}

func TestCreateFeeRoundingAcrossPeriods(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	for _, months := range []int{1, 3, 6, 12} {
		plan := testutil.CreatePlan(t, db, fmt.Sprintf("%d aylık plan", months), 1000, months)
		batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
			PlanID:      plan.ID,
			DueDate:     date(2026, time.March, 31),
			PaymentType: models.PaymentTypeInstallments,
		})
		require.NoError(t, err)
		require.Len(t, batch.Fees, months)

		var sum float64
		require.NoError(t, db.Model(&models.MembershipFee{}).
			Where("batch_id = ?", batch.ID).
			Select("COALESCE(SUM(amount), 0)").Scan(&sum).Error)
		assert.InDelta(t, 1000.0, sum, 0.001, "period %d", months)
	}
}

func TestCreateFeeFullPayment(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Giriş", 750, 6)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID:      plan.ID,
		DueDate:     date(2026, time.May, 1),
		PaymentType: models.PaymentTypeFullPayment,
		Notes:       "Giriş aidatı",
	})
	require.NoError(t, err)
	require.Len(t, batch.Fees, 1)
	assert.Equal(t, 750.0, batch.Fees[0].Amount)
	assert.Equal(t, "Giriş aidatı", batch.Fees[0].Notes)

	_, err = svc.CreateFee(ctx, admin, u.ID, FeeRequest{PlanID: plan.ID, DueDate: time.Now(), PaymentType: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestCreateBulkFeesIsAtomic(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Üç aylık", 300, 3)
	a := testutil.CreateUser(t, db, "a@example.com", models.RoleMember)
	b := testutil.CreateUser(t, db, "b@example.com", models.RoleMember)

	_, err := svc.CreateBulkFees(ctx, admin, []uint{a.ID, b.ID, 9999}, FeeRequest{
		PlanID:      plan.ID,
		DueDate:     date(2026, time.June, 1),
		PaymentType: models.PaymentTypeInstallments,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	var n int64
	require.NoError(t, db.Model(&models.MembershipFee{}).Count(&n).Error)
	assert.Zero(t, n)

	batches, err := svc.CreateBulkFees(ctx, admin, []uint{a.ID, b.ID, a.ID}, FeeRequest{
		PlanID:      plan.ID,
		DueDate:     date(2026, time.June, 1),
		PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)
	assert.Len(t, batches, 2)
	require.NoError(t, db.Model(&models.MembershipFee{}).Count(&n).Error)
	assert.EqualValues(t, 6, n)
}

func TestRecordPaymentOnPaidFee(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Aylık", 100, 1)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID: plan.ID, DueDate: date(2026, time.July, 1), PaymentType: models.PaymentTypeFullPayment,
	})
	require.NoError(t, err)
	feeID := batch.Fees[0].ID

	p, err := svc.RecordPayment(ctx, admin, PaymentInput{FeeID: feeID, Amount: 100, Method: models.PaymentBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)

	_, err = svc.RecordPayment(ctx, admin, PaymentInput{FeeID: feeID, Amount: 100})
	assert.ErrorIs(t, err, ErrFeeAlreadyPaid)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Where("fee_id = ?", feeID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	fee, err := svc.GetFee(ctx, feeID)
	require.NoError(t, err)
	assert.Equal(t, models.FeePaid, fee.Status)
	assert.NotNil(t, fee.PaidDate)

	_, err = svc.UpdateFee(ctx, admin, feeID, FeeUpdate{Notes: strPtr("değişiklik")})
	assert.ErrorIs(t, err, ErrFeeAlreadyPaid)
	assert.ErrorIs(t, svc.DeleteFee(ctx, admin, feeID), ErrFeeAlreadyPaid)

	_, err = svc.RecordPayment(ctx, admin, PaymentInput{FeeID: 9999, Amount: 5})
	assert.ErrorIs(t, err, ErrFeeNotFound)
	_, err = svc.RecordPayment(ctx, admin, PaymentInput{FeeID: feeID, Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordBulkPaymentRollsBack(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Üç taksit", 300, 3)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID: plan.ID, DueDate: date(2026, time.January, 10), PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)
	f1, f2, f3 := batch.Fees[0].ID, batch.Fees[1].ID, batch.Fees[2].ID

	_, err = svc.RecordPayment(ctx, admin, PaymentInput{FeeID: f2, Amount: 100})
	require.NoError(t, err)

	_, err = svc.RecordBulkPayment(ctx, admin, []uint{f1, f2}, models.PaymentCash, "")
	assert.ErrorIs(t, err, ErrFeeAlreadyPaid)

	fee, err := svc.GetFee(ctx, f1)
	require.NoError(t, err)
	assert.Equal(t, models.FeePending, fee.Status)

	_, err = svc.ApplyLateFee(ctx, admin, f3, 12.5)
	require.NoError(t, err)

	payments, err := svc.RecordBulkPayment(ctx, admin, []uint{f1, f3}, models.PaymentCash, "toplu")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, 100.0, payments[0].Amount)
	assert.Equal(t, 112.5, payments[1].Amount)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	assert.ErrorIs(t, svc.DeleteBatch(ctx, admin, batch.ID), ErrBatchHasPaid)
}

func TestDeleteBatchAndPlanInUse(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Altı ay", 600, 6)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID: plan.ID, DueDate: date(2026, time.February, 1), PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeletePlan(ctx, admin, plan.ID), ErrPlanInUse)

	require.NoError(t, svc.DeleteBatch(ctx, admin, batch.ID))
	var n int64
	require.NoError(t, db.Model(&models.MembershipFee{}).Count(&n).Error)
	assert.Zero(t, n)

	require.NoError(t, svc.DeletePlan(ctx, admin, plan.ID))
	_, err = svc.GetPlan(ctx, plan.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestOverdueAndSummary(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Dört ay", 400, 4)
	u := testutil.CreateUser(t, db, "ortak@example.com", models.RoleMember)

	now := date(2026, time.April, 20)
	batch, err := svc.CreateFee(ctx, admin, u.ID, FeeRequest{
		PlanID: plan.ID, DueDate: date(2026, time.February, 1), PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)
	// Due: Feb 1, Mar 1, Apr 1 (overdue), May 1.
	_, err = svc.RecordPayment(ctx, admin, PaymentInput{FeeID: batch.Fees[0].ID, Amount: 100})
	require.NoError(t, err)

	overdue, err := svc.OverdueFees(ctx, now)
	require.NoError(t, err)
	assert.Len(t, overdue, 2)

	sum, err := svc.UserSummary(ctx, u.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 400.0, sum.TotalFees)
	assert.Equal(t, 100.0, sum.TotalPaid)
	assert.Equal(t, 300.0, sum.TotalDue)
	assert.EqualValues(t, 3, sum.PendingCount)
	assert.EqualValues(t, 1, sum.PaidCount)
	assert.EqualValues(t, 2, sum.OverdueCount)
	assert.Equal(t, 200.0, sum.OverdueAmount)
	require.NotNil(t, sum.NextDueDate)
	assert.True(t, sum.NextDueDate.Equal(date(2026, time.May, 1)))
}

func TestAutomaticFeeRule(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	plan := testutil.CreatePlan(t, db, "Aylık aidat", 50, 1)
	a := testutil.CreateUser(t, db, "a@example.com", models.RoleMember)
	testutil.CreateUser(t, db, "b@example.com", models.RoleMember)
	passive := testutil.CreateUser(t, db, "c@example.com", models.RoleMember)
	require.NoError(t, db.Model(&passive).Update("is_active", false).Error)

	_, err := svc.CreateRule(ctx, RuleInput{PlanID: plan.ID, DayOfMonth: 31, IsActive: true})
	assert.ErrorIs(t, err, ErrInvalidDay)

	rule, err := svc.CreateRule(ctx, RuleInput{PlanID: plan.ID, DayOfMonth: 5, IsActive: true})
	require.NoError(t, err)

	// a already has a fee of the plan in March; only b is billed.
	_, err = svc.CreateFee(ctx, admin, a.ID, FeeRequest{
		PlanID: plan.ID, DueDate: date(2026, time.March, 20), PaymentType: models.PaymentTypeFullPayment,
	})
	require.NoError(t, err)

	now := date(2026, time.March, 10)
	n, err := svc.RunRule(ctx, admin, rule.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.RunRule(ctx, admin, rule.ID, now)
	assert.ErrorIs(t, err, ErrAlreadyRanFor)

	n, err = svc.RunDueRules(ctx, date(2026, time.April, 3))
	require.NoError(t, err)
	assert.Zero(t, n, "day_of_month not reached yet")

	n, err = svc.RunDueRules(ctx, date(2026, time.April, 6))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var fees []models.MembershipFee
	require.NoError(t, db.Where("plan_id = ? AND due_date = ?", plan.ID, date(2026, time.April, 5)).Find(&fees).Error)
	assert.Len(t, fees, 2)

	assert.ErrorIs(t, svc.DeletePlan(ctx, admin, plan.ID), ErrPlanInUse)
}

func TestRunDueRulesSkipsInactivePlan(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	stale := testutil.CreatePlan(t, db, "Eski aidat", 40, 1)
	live := testutil.CreatePlan(t, db, "Güncel aidat", 60, 1)
	testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)

	staleRule, err := svc.CreateRule(ctx, RuleInput{PlanID: stale.ID, DayOfMonth: 1, IsActive: true})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, RuleInput{PlanID: live.ID, DayOfMonth: 1, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, db.Model(&stale).Update("is_active", false).Error)

	for day := 2; day <= 4; day++ {
		n, err := svc.RunDueRules(ctx, date(2026, time.March, day))
		require.NoError(t, err)
		if day == 2 {
			assert.Equal(t, 1, n)
		} else {
			assert.Zero(t, n)
		}
	}

	var count int64
	require.NoError(t, db.Model(&models.MembershipFee{}).Where("plan_id = ?", live.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.Model(&models.MembershipFee{}).Where("plan_id = ?", stale.ID).Count(&count).Error)
	assert.Zero(t, count)

	var reloaded models.AutomaticFeeRule
	require.NoError(t, db.First(&reloaded, staleRule.ID).Error)
	assert.Empty(t, reloaded.LastRunPeriod)
}

func TestBlankPlanNameRejected(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, admin, PlanInput{Name: "  ", Amount: 100, PeriodMonths: 1, IsActive: true})
	assert.ErrorIs(t, err, ErrEmptyPlanName)

	plan := testutil.CreatePlan(t, db, "Aylık", 100, 1)
	_, err = svc.UpdatePlan(ctx, admin, plan.ID, PlanUpdate{Name: strPtr("   ")})
	assert.ErrorIs(t, err, ErrEmptyPlanName)
}

func strPtr(s string) *string { return &s }
