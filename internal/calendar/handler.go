package calendar

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

type EventRequest struct {
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description" validate:"max=5000"`
	Location     string    `json:"location" validate:"max=255"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" validate:"required"`
	AllDay       bool      `json:"all_day"`
	CommissionID *uint     `json:"commission_id"`
}

type UpdateEventRequest struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=5000"`
	Location     *string    `json:"location" validate:"omitempty,max=255"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	AllDay       *bool      `json:"all_day"`
	CommissionID *uint      `json:"commission_id"`
}

func checkCommission(c *fiber.Ctx, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	database.DB.WithContext(c.UserContext()).Model(&models.Commission{}).Where("id = ?", *id).Count(&count)
	if count == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Komisyon bulunamadı")
	}
	return nil
}

// findOwnedEvent loads the event and checks that the caller created it or is an admin.
func findOwnedEvent(c *fiber.Ctx) (*models.CalendarEvent, error) {
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return nil, err
	}
	var ev models.CalendarEvent
	if err := database.DB.WithContext(c.UserContext()).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Etkinlik bulunamadı")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Etkinlik getirilemedi")
	}
	if ev.CreatedBy != auth.UserID(c) && !auth.IsAdmin(c) {
		return nil, fiber.NewError(fiber.StatusForbidden, "Bu etkinliği değiştirme yetkiniz yok")
	}
	return &ev, nil
}

// GET /api/calendar?from=2026-01-01&to=2026-01-31&commission_id=3
func ListEventsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.WithContext(c.UserContext()).Model(&models.CalendarEvent{})

		if from := c.Query("from"); from != "" {
			d, err := respond.ParseDate(from)
			if err != nil {
				return err
			}
			q = q.Where("end_time >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := respond.ParseDate(to)
			if err != nil {
				return err
			}
			q = q.Where("start_time < ?", d.AddDate(0, 0, 1))
		}
		commissionID, err := respond.QueryID(c, "commission_id")
		if err != nil {
			return err
		}
		if commissionID != 0 {
			q = q.Where("commission_id = ?", commissionID)
		}

		var events []models.CalendarEvent
		if err := q.Order("start_time ASC").Find(&events).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Etkinlikler getirilemedi")
		}
		return respond.OK(c, events)
	}
}

// GET /api/calendar/upcoming?limit=5
func UpcomingEventsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 5)
		if limit <= 0 || limit > 50 {
			limit = 5
		}
		var events []models.CalendarEvent
		if err := database.DB.WithContext(c.UserContext()).
			Where("start_time >= ?", time.Now()).
			Order("start_time ASC").
			Limit(limit).
			Find(&events).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Etkinlikler getirilemedi")
		}
		return respond.OK(c, events)
	}
}

// GET /api/calendar/:id
func GetEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := respond.ParamID(c, "id")
		if err != nil {
			return err
		}
		var ev models.CalendarEvent
		if err := database.DB.WithContext(c.UserContext()).First(&ev, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Etkinlik bulunamadı")
		}
		return respond.OK(c, ev)
	}
}

// POST /api/calendar
func CreateEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body EventRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}
		if body.EndTime.Before(body.StartTime) {
			return fiber.NewError(fiber.StatusBadRequest, "Bitiş zamanı başlangıçtan önce olamaz")
		}
		if err := checkCommission(c, body.CommissionID); err != nil {
			return err
		}

		ev := models.CalendarEvent{
			Title:        strings.TrimSpace(body.Title),
			Description:  body.Description,
			Location:     strings.TrimSpace(body.Location),
			StartTime:    body.StartTime,
			EndTime:      body.EndTime,
			AllDay:       body.AllDay,
			CommissionID: body.CommissionID,
			CreatedBy:    auth.UserID(c),
		}
		if err := database.DB.WithContext(c.UserContext()).Create(&ev).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Etkinlik oluşturulamadı")
		}
		return respond.Created(c, "Etkinlik oluşturuldu", ev)
	}
}

// PUT /api/calendar/:id
func UpdateEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ev, err := findOwnedEvent(c)
		if err != nil {
			return err
		}
		var body UpdateEventRequest
		if err := respond.Parse(c, &body); err != nil {
			return err
		}

		if body.Title != nil {
			ev.Title = strings.TrimSpace(*body.Title)
		}
		if body.Description != nil {
			ev.Description = *body.Description
		}
		if body.Location != nil {
			ev.Location = strings.TrimSpace(*body.Location)
		}
		if body.StartTime != nil {
			ev.StartTime = *body.StartTime
		}
		if body.EndTime != nil {
			ev.EndTime = *body.EndTime
		}
		if body.AllDay != nil {
			ev.AllDay = *body.AllDay
		}
		if body.CommissionID != nil {
			if err := checkCommission(c, body.CommissionID); err != nil {
				return err
			}
			ev.CommissionID = body.CommissionID
		}
		if ev.EndTime.Before(ev.StartTime) {
			return fiber.NewError(fiber.StatusBadRequest, "Bitiş zamanı başlangıçtan önce olamaz")
		}

		if err := database.DB.WithContext(c.UserContext()).Save(ev).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Etkinlik güncellenemedi")
		}
		return respond.MessageWithData(c, "Etkinlik güncellendi", ev)
	}
}

// DELETE /api/calendar/:id
func DeleteEventHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ev, err := findOwnedEvent(c)
		if err != nil {
			return err
		}
		if err := database.DB.WithContext(c.UserContext()).Delete(ev).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Etkinlik silinemedi")
		}
		return respond.Message(c, "Etkinlik silindi")
	}
}

func Register(r fiber.Router) {
	g := r.Group("/calendar", auth.RequireMember())
	g.Get("/", ListEventsHandler())
	g.Get("/upcoming", UpcomingEventsHandler())
	g.Get("/:id", GetEventHandler())
	g.Post("/", CreateEventHandler())
	g.Put("/:id", UpdateEventHandler())
	g.Delete("/:id", DeleteEventHandler())
}
