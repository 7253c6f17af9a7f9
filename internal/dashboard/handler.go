package dashboard

import (
	"log/slog"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

// GET /api/dashboard/admin
func AdminStatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := Admin(c.UserContext(), database.DB, time.Now())
		if err != nil {
			slog.Error("dashboard istatistikleri alınamadı", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "İstatistikler alınamadı")
		}
		return respond.OK(c, st)
	}
}

// GET /api/dashboard/member
func MemberStatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := Member(c.UserContext(), database.DB, auth.UserID(c), time.Now())
		if err != nil {
			slog.Error("üye dashboard alınamadı", "user_id", auth.UserID(c), "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "İstatistikler alınamadı")
		}
		return respond.OK(c, st)
	}
}

// GET /api/dashboard/payment-chart?period=daily&count=7
func PaymentChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := Period(c.Query("period", string(PeriodDaily)))
		switch period {
		case PeriodDaily, PeriodWeekly, PeriodMonthly:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "period 'daily', 'weekly' veya 'monthly' olmalı")
		}
		count := c.QueryInt("count", DefaultCount(period))
		if count <= 0 || count > 366 {
			return fiber.NewError(fiber.StatusBadRequest, "count geçersiz")
		}

		chart, err := Payments(c.UserContext(), database.DB, period, count, time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}
		return respond.OK(c, chart)
	}
}

func Register(r fiber.Router) {
	g := r.Group("/dashboard")
	g.Get("/member", auth.RequireMember(), MemberStatsHandler())
	g.Get("/admin", auth.RequireAdmin(), AdminStatsHandler())
	g.Get("/payment-chart", auth.RequireAdmin(), PaymentChartHandler())
}
