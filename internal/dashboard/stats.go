// Package dashboard aggregates the numbers shown on the admin and member home
// screens. Each figure is its own query; they run in parallel and are not
// taken from a single snapshot.
package dashboard

import (
	"context"
	"time"

	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const upcomingLimit = 5

type AdminStats struct {
	TotalUsers          int64                  `json:"total_users"`
	ActiveUsers         int64                  `json:"active_users"`
	ActiveCommissions   int64                  `json:"active_commissions"`
	PendingApplications int64                  `json:"pending_applications"`
	PendingFeeAmount    float64                `json:"pending_fee_amount"`
	PaidFeeAmount       float64                `json:"paid_fee_amount"`
	OverdueFeeCount     int64                  `json:"overdue_fee_count"`
	OverdueFeeAmount    float64                `json:"overdue_fee_amount"`
	MonthCollected      float64                `json:"month_collected"`
	DocumentCount       int64                  `json:"document_count"`
	UpcomingEvents      []models.CalendarEvent `json:"upcoming_events"`
}

type MemberStats struct {
	Fees                *membership.Summary    `json:"fees"`
	ActiveCommissions   int64                  `json:"active_commissions"`
	PendingApplications int64                  `json:"pending_applications"`
	UpcomingEvents      []models.CalendarEvent `json:"upcoming_events"`
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sumFees(db *gorm.DB, out *float64) error {
	return db.Model(&models.MembershipFee{}).Select("COALESCE(SUM(amount + late_fee), 0)").Scan(out).Error
}

func upcomingEvents(db *gorm.DB, now time.Time, commissionIDs []uint) ([]models.CalendarEvent, error) {
	q := db.Where("start_time >= ?", now)
	switch {
	case commissionIDs == nil:
	case len(commissionIDs) == 0:
		q = q.Where("commission_id IS NULL")
	default:
		q = q.Where("(commission_id IS NULL OR commission_id IN ?)", commissionIDs)
	}
	var events []models.CalendarEvent
	err := q.Order("start_time ASC").Limit(upcomingLimit).Find(&events).Error
	return events, err
}

// Admin collects the admin dashboard figures as of now.
func Admin(ctx context.Context, db *gorm.DB, now time.Time) (*AdminStats, error) {
	var st AdminStats
	day := today(now)
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)

	g, gctx := errgroup.WithContext(ctx)
	tx := func() *gorm.DB { return db.WithContext(gctx) }

	g.Go(func() error {
		return tx().Model(&models.User{}).Where("role = ?", models.RoleMember).Count(&st.TotalUsers).Error
	})
	g.Go(func() error {
		return tx().Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleMember, true).Count(&st.ActiveUsers).Error
	})
	g.Go(func() error {
		return tx().Model(&models.Commission{}).Where("is_active = ?", true).Count(&st.ActiveCommissions).Error
	})
	g.Go(func() error {
		return tx().Model(&models.CommissionMember{}).Where("status = ?", models.MembershipPending).Count(&st.PendingApplications).Error
	})
	g.Go(func() error {
		return sumFees(tx().Where("status = ?", models.FeePending), &st.PendingFeeAmount)
	})
	g.Go(func() error {
		return sumFees(tx().Where("status = ?", models.FeePaid), &st.PaidFeeAmount)
	})
	g.Go(func() error {
		return tx().Model(&models.MembershipFee{}).
			Where("status = ? AND due_date < ?", models.FeePending, day).
			Count(&st.OverdueFeeCount).Error
	})
	g.Go(func() error {
		return sumFees(tx().Where("status = ? AND due_date < ?", models.FeePending, day), &st.OverdueFeeAmount)
	})
	g.Go(func() error {
		return tx().Model(&models.Payment{}).
			Where("payment_date >= ?", monthStart).
			Select("COALESCE(SUM(amount), 0)").Scan(&st.MonthCollected).Error
	})
	g.Go(func() error {
		return tx().Model(&models.Document{}).Count(&st.DocumentCount).Error
	})
	g.Go(func() error {
		var err error
		st.UpcomingEvents, err = upcomingEvents(tx(), now, nil)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}

// Member collects the dashboard of one member. Upcoming events are the
// general ones plus those of commissions the member actively belongs to.
func Member(ctx context.Context, db *gorm.DB, userID uint, now time.Time) (*MemberStats, error) {
	var st MemberStats

	var commissionIDs []uint
	if err := db.WithContext(ctx).Model(&models.CommissionMember{}).
		Where("user_id = ? AND status = ?", userID, models.MembershipActive).
		Pluck("commission_id", &commissionIDs).Error; err != nil {
		return nil, err
	}
	st.ActiveCommissions = int64(len(commissionIDs))
	if commissionIDs == nil {
		commissionIDs = []uint{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.Fees, err = membership.NewService(db).UserSummary(gctx, userID, now)
		return err
	})
	g.Go(func() error {
		return db.WithContext(gctx).Model(&models.CommissionMember{}).
			Where("user_id = ? AND status = ?", userID, models.MembershipPending).
			Count(&st.PendingApplications).Error
	})
	g.Go(func() error {
		var err error
		st.UpcomingEvents, err = upcomingEvents(db.WithContext(gctx), now, commissionIDs)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &st, nil
}
