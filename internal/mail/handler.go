package mail

import (
	"errors"
	"fmt"
	"log/slog"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

type SendRequest struct {
	Subject      string `json:"subject" validate:"required,max=255"`
	Body         string `json:"body" validate:"required"`
	Target       string `json:"target" validate:"required,oneof=all commission users"`
	CommissionID uint   `json:"commission_id" validate:"required_if=Target commission"`
	UserIDs      []uint `json:"user_ids" validate:"required_if=Target users"`
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrDisabled):
		return fiber.NewError(fiber.StatusServiceUnavailable, "E-posta gönderimi yapılandırılmamış (SMTP)")
	case errors.Is(err, ErrCommissionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Komisyon bulunamadı")
	case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrNoRecipients):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		slog.Error("mail hatası", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "E-posta gönderilemedi")
	}
}

// POST /api/mail/send
func SendHandler(sender Sender) fiber.Handler {
	return func(c *fiber.Ctx) error {
		svc := NewService(database.DB, sender)
		if !svc.Enabled() {
			return toHTTPError(ErrDisabled)
		}
		var body SendRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		target := Target{Kind: TargetKind(body.Target), CommissionID: body.CommissionID, UserIDs: body.UserIDs}
		res, err := svc.Send(c.UserContext(), auth.UserID(c), target, body.Subject, body.Body)
		if err != nil && res == nil {
			return toHTTPError(err)
		}
		if err != nil {
			// Gönderim yapıldı, sadece log yazılamadı
			slog.Error("mail logları kaydedilemedi", "error", err)
		}

		if user, _ := auth.CurrentUser(c); user != nil {
			audit.Record(c.UserContext(), database.DB, audit.LogOptions{
				UserID:      user.ID,
				UserName:    user.FullName(),
				EntityType:  "mail",
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Toplu e-posta: %q (%d gönderildi, %d hatalı)", body.Subject, res.Sent, res.Failed),
				After:       res,
			})
		}

		return respond.MessageWithData(c,
			fmt.Sprintf("%d alıcıdan %d kişiye gönderildi", res.Total, res.Sent), res)
	}
}

// GET /api/mail/recipients?target=commission&commission_id=3
func PreviewRecipientsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		commissionID, err := respond.QueryID(c, "commission_id")
		if err != nil {
			return err
		}
		target := Target{Kind: TargetKind(c.Query("target", string(TargetAll))), CommissionID: commissionID}
		users, err := NewService(database.DB, nil).Recipients(c.UserContext(), target)
		if err != nil {
			return toHTTPError(err)
		}
		return respond.OK(c, fiber.Map{"count": len(users), "users": users})
	}
}

// GET /api/mail/logs?status=failed&user_id=5
func ListLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := LogFilter{Status: models.MailStatus(c.Query("status"))}
		switch f.Status {
		case "", models.MailSent, models.MailFailed:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "status 'sent' veya 'failed' olmalı")
		}
		uid, err := respond.QueryID(c, "user_id")
		if err != nil {
			return err
		}
		f.UserID = uid

		logs, total, err := NewService(database.DB, nil).ListLogs(c.UserContext(), f, respond.Paginate(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mail kayıtları getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, logs, total))
	}
}

// Register mounts /mail; sender is nil when SMTP is not configured.
func Register(r fiber.Router, sender Sender) {
	g := r.Group("/mail", auth.RequireAdmin())
	g.Post("/send", SendHandler(sender))
	g.Get("/recipients", PreviewRecipientsHandler())
	g.Get("/logs", ListLogsHandler())
}
