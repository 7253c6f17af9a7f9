package dashboard_test

import (
	"context"
	"testing"
	"time"

	"kooperatif-backend/internal/dashboard"
	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminStats(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	a := testutil.CreateUser(t, db, "a@example.com", models.RoleMember)
	b := testutil.CreateUser(t, db, "b@example.com", models.RoleMember)
	require.NoError(t, db.Model(&b).Update("is_active", false).Error)

	c := testutil.CreateCommission(t, db, "Eğitim", 3, admin.ID)
	require.NoError(t, db.Create(&models.CommissionMember{CommissionID: c.ID, UserID: a.ID,
		Role: models.CommissionRoleMember, Status: models.MembershipPending}).Error)

	plan := testutil.CreatePlan(t, db, "Üç ay", 300, 3)
	svc := membership.NewService(db)
	actor := membership.Actor{UserID: admin.ID, Name: "Admin"}
	batch, err := svc.CreateFee(ctx, actor, a.ID, membership.FeeRequest{
		PlanID: plan.ID, DueDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), PaymentType: models.PaymentTypeInstallments,
	})
	require.NoError(t, err)
	paidAt := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err = svc.RecordPayment(ctx, actor, membership.PaymentInput{FeeID: batch.Fees[0].ID, Amount: 100, PaymentDate: &paidAt})
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.CalendarEvent{Title: "Gelecek", StartTime: now.Add(time.Hour),
		EndTime: now.Add(2 * time.Hour), CreatedBy: admin.ID}).Error)
	require.NoError(t, db.Create(&models.CalendarEvent{Title: "Geçmiş", StartTime: now.Add(-48 * time.Hour),
		EndTime: now.Add(-47 * time.Hour), CreatedBy: admin.ID}).Error)

	st, err := dashboard.Admin(ctx, db, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalUsers)
	assert.EqualValues(t, 1, st.ActiveUsers)
	assert.EqualValues(t, 1, st.ActiveCommissions)
	assert.EqualValues(t, 1, st.PendingApplications)
	assert.InDelta(t, 200, st.PendingFeeAmount, 0.001)
	assert.InDelta(t, 100, st.PaidFeeAmount, 0.001)
	// 1 Haziran vadeli taksit gecikmiş, 1 Temmuz vadeli değil
	assert.EqualValues(t, 1, st.OverdueFeeCount)
	assert.InDelta(t, 100, st.OverdueFeeAmount, 0.001)
	assert.InDelta(t, 100, st.MonthCollected, 0.001)
	require.Len(t, st.UpcomingEvents, 1)
	assert.Equal(t, "Gelecek", st.UpcomingEvents[0].Title)
}

func TestMemberStatsShowsOwnCommissionEvents(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Now().UTC()

	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	u := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	mine := testutil.CreateCommission(t, db, "Benim", 3, admin.ID)
	other := testutil.CreateCommission(t, db, "Diğer", 3, admin.ID)
	require.NoError(t, db.Create(&models.CommissionMember{CommissionID: mine.ID, UserID: u.ID,
		Role: models.CommissionRoleMember, Status: models.MembershipActive}).Error)

	for _, cid := range []*uint{nil, &mine.ID, &other.ID} {
		require.NoError(t, db.Create(&models.CalendarEvent{Title: "Etkinlik", StartTime: now.Add(time.Hour),
			EndTime: now.Add(2 * time.Hour), CommissionID: cid, CreatedBy: admin.ID}).Error)
	}

	st, err := dashboard.Member(context.Background(), db, u.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.ActiveCommissions)
	assert.Len(t, st.UpcomingEvents, 2)
	for _, ev := range st.UpcomingEvents {
		if ev.CommissionID != nil {
			assert.Equal(t, mine.ID, *ev.CommissionID)
		}
	}
	require.NotNil(t, st.Fees)
	assert.Zero(t, st.Fees.TotalDue)
}

func TestPaymentChartBuckets(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	plan := testutil.CreatePlan(t, db, "Plan", 1000, 1)
	fee := models.MembershipFee{UserID: u.ID, PlanID: plan.ID, Amount: 1000, Status: models.FeePaid,
		DueDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&fee).Error)
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC) // Çarşamba

	pay := func(day int, method models.PaymentMethod, amount float64) {
		require.NoError(t, db.Create(&models.Payment{FeeID: fee.ID, UserID: u.ID, Amount: amount, Method: method,
			PaymentDate: time.Date(2026, 6, day, 0, 0, 0, 0, time.UTC)}).Error)
	}
	pay(10, models.PaymentCash, 50)
	pay(10, models.PaymentBankTransfer, 25)
	pay(8, models.PaymentCreditCard, 10)
	pay(1, models.PaymentCash, 999) // daily penceresinin dışında

	chart, err := dashboard.Payments(context.Background(), db, dashboard.PeriodDaily, 7, now)
	require.NoError(t, err)
	require.Len(t, chart.Points, 7)
	assert.Equal(t, "2026-06-04", chart.From)
	assert.Equal(t, "2026-06-10", chart.To)
	last := chart.Points[6]
	assert.Equal(t, "2026-06-10", last.Label)
	assert.InDelta(t, 50, last.Cash, 0.001)
	assert.InDelta(t, 25, last.BankTransfer, 0.001)
	assert.InDelta(t, 85, chart.GrandTotals.Total, 0.001)

	weekly, err := dashboard.Payments(context.Background(), db, dashboard.PeriodWeekly, 2, now)
	require.NoError(t, err)
	require.Len(t, weekly.Points, 2)
	assert.Equal(t, "2026-06-08", weekly.Points[1].Label)
	assert.InDelta(t, 85, weekly.Points[1].Total, 0.001)
	assert.InDelta(t, 999, weekly.Points[0].Total, 0.001)
}

func TestDashboardRoutes(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	app, api := testutil.NewApp(cfg)
	dashboard.Register(api)

	u := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	tok := testutil.Token(t, cfg, u)

	status, _ := testutil.Do(t, app, "GET", "/api/dashboard/admin", tok, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, env := testutil.Do(t, app, "GET", "/api/dashboard/member", tok, nil)
	require.Equal(t, fiber.StatusOK, status, env.Message)
}
