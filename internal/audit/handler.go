package audit

import (
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

// GET /api/admin/audit-logs?entity_type=membership_fee&entity_id=1&user_id=3
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.AuditLog{})

		userID, err := respond.QueryID(c, "user_id")
		if err != nil {
			return err
		}
		if userID > 0 {
			dbq = dbq.Where("user_id = ?", userID)
		}

		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}

		entityID, err := respond.QueryID(c, "entity_id")
		if err != nil {
			return err
		}
		if entityID > 0 {
			dbq = dbq.Where("entity_id = ?", entityID)
		}

		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}

		var total int64
		if err := dbq.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar sayılamadı")
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Scopes(respond.Paginate(c)).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Loglar listelenemedi")
		}

		return respond.OK(c, respond.NewPage(c, logs, total))
	}
}
