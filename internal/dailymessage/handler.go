package dailymessage

import (
	"errors"
	"strings"
	"time"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MessageRequest struct {
	Message     string `json:"message" validate:"required,max=2000"`
	Author      string `json:"author" validate:"max=150"`
	DisplayDate string `json:"display_date" validate:"omitempty,datetime=2006-01-02"`
	IsActive    *bool  `json:"is_active"`
}

type UpdateMessageRequest struct {
	Message     *string `json:"message" validate:"omitempty,min=1,max=2000"`
	Author      *string `json:"author" validate:"omitempty,max=150"`
	DisplayDate *string `json:"display_date"`
	IsActive    *bool   `json:"is_active"`
}

// parseDisplayDate turns "" into nil, otherwise a UTC date.
func parseDisplayDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := respond.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Today picks the message to show on day now: the active message dated today,
// else the most recent active undated one. It returns gorm.ErrRecordNotFound
// when neither exists.
func Today(db *gorm.DB, now time.Time) (*models.DailyMessage, error) {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	var msg models.DailyMessage
	err := db.Where("is_active = ? AND display_date = ?", true, day).
		Order("updated_at DESC").
		First(&msg).Error
	if err == nil {
		return &msg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Where("is_active = ? AND display_date IS NULL", true).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GET /api/daily-messages/today
func TodayHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		msg, err := Today(database.DB.WithContext(c.UserContext()), time.Now())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respond.OK(c, nil)
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Günün mesajı getirilemedi")
		}
		return respond.OK(c, msg)
	}
}

// GET /api/daily-messages
func ListMessagesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.WithContext(c.UserContext()).Model(&models.DailyMessage{})
		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mesajlar getirilemedi")
		}
		var list []models.DailyMessage
		if err := q.Scopes(respond.Paginate(c)).
			Order("display_date DESC NULLS LAST, created_at DESC").
			Find(&list).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mesajlar getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, list, total))
	}
}

// POST /api/daily-messages
func CreateMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MessageRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		date, err := parseDisplayDate(body.DisplayDate)
		if err != nil {
			return err
		}
		msg := models.DailyMessage{
			Message:     strings.TrimSpace(body.Message),
			Author:      strings.TrimSpace(body.Author),
			DisplayDate: date,
			IsActive:    body.IsActive == nil || *body.IsActive,
			CreatedBy:   auth.UserID(c),
		}
		if err := database.DB.WithContext(c.UserContext()).Create(&msg).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mesaj oluşturulamadı")
		}
		return respond.Created(c, "Mesaj oluşturuldu", msg)
	}
}

// PUT /api/daily-messages/:id
// display_date "" gönderilirse tarih kaldırılır.
func UpdateMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var msg models.DailyMessage
		if err := database.DB.WithContext(c.UserContext()).First(&msg, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Mesaj bulunamadı")
		}

		var body UpdateMessageRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		if body.Message != nil {
			msg.Message = strings.TrimSpace(*body.Message)
		}
		if body.Author != nil {
			msg.Author = strings.TrimSpace(*body.Author)
		}
		if body.DisplayDate != nil {
			if msg.DisplayDate, err = parseDisplayDate(*body.DisplayDate); err != nil {
				return err
			}
		}
		if body.IsActive != nil {
			msg.IsActive = *body.IsActive
		}

		if err := database.DB.WithContext(c.UserContext()).Save(&msg).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mesaj güncellenemedi")
		}
		return respond.MessageWithData(c, "Mesaj güncellendi", msg)
	}
}

// DELETE /api/daily-messages/:id
func DeleteMessageHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		res := database.DB.WithContext(c.UserContext()).Delete(&models.DailyMessage{}, id)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Mesaj silinemedi")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Mesaj bulunamadı")
		}
		return respond.Message(c, "Mesaj silindi")
	}
}

func Register(r fiber.Router) {
	g := r.Group("/daily-messages")
	g.Get("/today", TodayHandler())

	admin := g.Group("", auth.RequireAdmin())
	admin.Get("/", ListMessagesHandler())
	admin.Post("/", CreateMessageHandler())
	admin.Put("/:id", UpdateMessageHandler())
	admin.Delete("/:id", DeleteMessageHandler())
}
