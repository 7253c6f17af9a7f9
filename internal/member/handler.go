// Package member serves the self-service views of the logged-in ortak.
package member

import (
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/commission"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

// GET /api/member/fees?status=pending|paid&overdue=true
func MyFeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := membership.FeeFilter{
			UserID:  auth.UserID(c),
			Overdue: c.QueryBool("overdue", false),
		}
		switch status := models.FeeStatus(c.Query("status")); status {
		case "", models.FeePending, models.FeePaid:
			f.Status = status
		default:
			return fiber.NewError(fiber.StatusBadRequest, "status 'pending' veya 'paid' olmalı")
		}

		fees, total, err := membership.NewService(database.DB).ListFees(c.UserContext(), f, respond.Paginate(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidatlarınız getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, fees, total))
	}
}

// GET /api/member/payments
func MyPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := membership.PaymentFilter{UserID: auth.UserID(c)}
		payments, total, err := membership.NewService(database.DB).ListPayments(c.UserContext(), f, respond.Paginate(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödemeleriniz getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, payments, total))
	}
}

// GET /api/member/summary
func MySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := membership.NewService(database.DB).UserSummary(c.UserContext(), auth.UserID(c), time.Now())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Özet hesaplanamadı")
		}
		return respond.OK(c, sum)
	}
}

// GET /api/member/commissions
func MyCommissionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := commission.NewService(database.DB).UserMemberships(c.UserContext(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Komisyonlarınız getirilemedi")
		}
		return respond.OK(c, list)
	}
}

func Register(r fiber.Router) {
	g := r.Group("/member", auth.RequireMember())
	g.Get("/fees", MyFeesHandler())
	g.Get("/payments", MyPaymentsHandler())
	g.Get("/summary", MySummaryHandler())
	g.Get("/commissions", MyCommissionsHandler())
}
