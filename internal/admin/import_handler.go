package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
)

const maxImportFileSize = 5 << 20

// POST /api/admin/users/import
// multipart/form-data, alan adı: "file" (.xlsx)
func ImportUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Excel dosyası gerekli (alan adı: file)")
		}
		if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".xlsx" {
			return fiber.NewError(fiber.StatusBadRequest, "Sadece .xlsx dosyaları kabul edilir")
		}
		if fh.Size > maxImportFileSize {
			return fiber.NewError(fiber.StatusBadRequest, "Dosya boyutu 5MB'ı aşamaz")
		}

		file, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Dosya açılamadı")
		}
		defer file.Close()

		res, err := ImportMembers(c.UserContext(), database.DB, file)
		switch {
		case errors.Is(err, ErrEmptyWorkbook), errors.Is(err, ErrTooManyRows):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrUnreadableWorkbook):
			return fiber.NewError(fiber.StatusBadRequest, ErrUnreadableWorkbook.Error())
		case err != nil:
			slog.Error("üye içe aktarma hatası", "file", fh.Filename, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "İçe aktarma tamamlanamadı")
		}

		if res.Created > 0 {
			user, _ := auth.CurrentUser(c)
			opts := audit.LogOptions{
				EntityType:  "user",
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Excel ile %d üye içe aktarıldı (%s)", res.Created, fh.Filename),
			}
			if user != nil {
				opts.UserID, opts.UserName = user.ID, user.FullName()
			}
			audit.Record(c.UserContext(), database.DB, opts)
		}

		return respond.MessageWithData(c,
			fmt.Sprintf("%d üye eklendi, %d satır hatalı", res.Created, res.Failed), res)
	}
}
