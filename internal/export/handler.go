package export

import (
	"fmt"
	"log/slog"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "02.01.2006"

var (
	feeStatusLabels = map[models.FeeStatus]string{
		models.FeePending: "Bekliyor",
		models.FeePaid:    "Ödendi",
	}
	methodLabels = map[models.PaymentMethod]string{
		models.PaymentCash:         "Nakit",
		models.PaymentBankTransfer: "Havale/EFT",
		models.PaymentCreditCard:   "Kredi kartı",
		models.PaymentOther:        "Diğer",
	}
)

func send(c *fiber.Ctx, prefix string, sheets ...Sheet) error {
	buf, err := Build(sheets...)
	if err != nil {
		slog.Error("excel oluşturulamadı", "report", prefix, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
	}
	name := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Attachment(name)
	return c.Send(buf.Bytes())
}

func userNames(c *fiber.Ctx, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := database.DB.WithContext(c.UserContext()).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func yesNo(b bool) string {
	if b {
		return "Evet"
	}
	return "Hayır"
}

// GET /api/export/users?role=member&is_active=true
func UsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.WithContext(c.UserContext()).Model(&models.User{})
		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}
		if c.Query("is_active") != "" {
			q = q.Where("is_active = ?", c.QueryBool("is_active"))
		}
		var users []models.User
		if err := q.Order("last_name, first_name").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar getirilemedi")
		}

		sh := Sheet{
			Name:    "Üyeler",
			Headers: []string{"Üye No", "Ad", "Soyad", "E-posta", "Telefon", "Adres", "Rol", "Aktif", "Katılım"},
			Widths:  []float64{10, 16, 16, 28, 16, 32, 10, 8, 12},
		}
		for _, u := range users {
			sh.Rows = append(sh.Rows, []any{
				u.MemberNo, u.FirstName, u.LastName, u.Email, u.Phone, u.Address,
				string(u.Role), yesNo(u.IsActive), u.JoinedAt.Format(dateLayout),
			})
		}
		return send(c, "uyeler", sh)
	}
}

// GET /api/export/fees  (aidat listesiyle aynı filtreler)
func FeesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := membership.FeeFilterFromQuery(c)
		if err != nil {
			return err
		}
		fees, _, err := membership.NewService(database.DB).ListFees(c.UserContext(), f, nil)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Aidatlar getirilemedi")
		}

		today := time.Now()
		sh := Sheet{
			Name: "Aidatlar",
			Headers: []string{"Aidat No", "Üye", "E-posta", "Plan", "Taksit", "Tutar", "Gecikme Bedeli",
				"Toplam", "Vade", "Durum", "Ödeme Tarihi", "Gecikmiş", "Not"},
			Widths: []float64{9, 24, 28, 18, 8, 12, 14, 12, 12, 10, 13, 9, 30},
		}
		for _, fee := range fees {
			var member, email, plan string
			if fee.User != nil {
				member, email = fee.User.FullName(), fee.User.Email
			}
			if fee.Plan != nil {
				plan = fee.Plan.Name
			}
			paid := ""
			if fee.PaidDate != nil {
				paid = fee.PaidDate.Format(dateLayout)
			}
			overdue := fee.Status == models.FeePending && fee.DueDate.Before(today)
			sh.Rows = append(sh.Rows, []any{
				fee.ID, member, email, plan,
				fmt.Sprintf("%d/%d", fee.InstallmentNo, fee.InstallmentCount),
				fee.Amount, fee.LateFee, fee.TotalDue(),
				fee.DueDate.Format(dateLayout), feeStatusLabels[fee.Status], paid, yesNo(overdue), fee.Notes,
			})
		}
		return send(c, "aidatlar", sh)
	}
}

// GET /api/export/payments  (ödeme listesiyle aynı filtreler)
func PaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := membership.PaymentFilterFromQuery(c)
		if err != nil {
			return err
		}
		payments, _, err := membership.NewService(database.DB).ListPayments(c.UserContext(), f, nil)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ödemeler getirilemedi")
		}

		ids := make([]uint, 0, len(payments))
		for _, p := range payments {
			ids = append(ids, p.UserID)
		}
		users, err := userNames(c, ids)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Üyeler getirilemedi")
		}

		sh := Sheet{
			Name:    "Ödemeler",
			Headers: []string{"Ödeme No", "Tarih", "Üye", "E-posta", "Aidat No", "Vade", "Tutar", "Yöntem", "Not"},
			Widths:  []float64{9, 12, 24, 28, 9, 12, 12, 14, 30},
		}
		var total float64
		for _, p := range payments {
			u := users[p.UserID]
			due := ""
			if p.Fee != nil {
				due = p.Fee.DueDate.Format(dateLayout)
			}
			sh.Rows = append(sh.Rows, []any{
				p.ID, p.PaymentDate.Format(dateLayout), u.FullName(), u.Email, p.FeeID, due,
				p.Amount, methodLabels[p.Method], p.Notes,
			})
			total += p.Amount
		}
		sh.Rows = append(sh.Rows, []any{"", "", "", "", "", "TOPLAM", total})
		return send(c, "odemeler", sh)
	}
}

// Register mounts /export for admins.
func Register(r fiber.Router) {
	g := r.Group("/export", auth.RequireAdmin())
	g.Get("/users", UsersHandler())
	g.Get("/fees", FeesHandler())
	g.Get("/payments", PaymentsHandler())
}
