package documents

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type uploadForm struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=500"`
	Category     string `json:"category" validate:"max=50"`
	CommissionID *uint  `json:"commission_id"`
}

func readForm(c *fiber.Ctx) (uploadForm, error) {
	f := uploadForm{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Category:    strings.TrimSpace(c.FormValue("category")),
	}
	if raw := c.FormValue("commission_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v == 0 {
			return f, fiber.NewError(fiber.StatusBadRequest, "commission_id geçersiz")
		}
		id := uint(v)
		f.CommissionID = &id
	}
	return f, respond.Validate(f)
}

func findDocument(c *fiber.Ctx) (*models.Document, error) {
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := database.DB.WithContext(c.UserContext()).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Doküman bulunamadı")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Doküman getirilemedi")
	}
	return &doc, nil
}

// GET /api/documents?category=tutanak&commission_id=2
func ListDocumentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.WithContext(c.UserContext()).Model(&models.Document{})
		if cat := c.Query("category"); cat != "" {
			q = q.Where("category = ?", cat)
		}
		commissionID, err := respond.QueryID(c, "commission_id")
		if err != nil {
			return err
		}
		if commissionID != 0 {
			q = q.Where("commission_id = ?", commissionID)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dokümanlar getirilemedi")
		}
		var docs []models.Document
		if err := q.Scopes(respond.Paginate(c)).Order("created_at DESC").Find(&docs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Dokümanlar getirilemedi")
		}
		return respond.OK(c, respond.NewPage(c, docs, total))
	}
}

// POST /api/documents
// multipart/form-data: file, title, description, category, commission_id
func UploadDocumentHandler(cfg *config.Config) fiber.Handler {
	store := NewStore(cfg.UploadDir)
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Dosya gerekli (alan adı: file)")
		}
		if fh.Size > cfg.MaxUploadBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge,
				fmt.Sprintf("Dosya boyutu %dMB'ı aşamaz", cfg.MaxUploadBytes>>20))
		}
		ext, mime, err := mimeFor(fh.Filename)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bu dosya türü yüklenemez (pdf, doc, docx, xls, xlsx, ppt, pptx, txt, png, jpeg)")
		}
		form, err := readForm(c)
		if err != nil {
			return err
		}
		if form.CommissionID != nil {
			var n int64
			if err := database.DB.WithContext(c.UserContext()).Model(&models.Commission{}).
				Where("id = ?", *form.CommissionID).Count(&n).Error; err != nil {
				slog.Error("komisyon kontrol edilemedi", "commission_id", *form.CommissionID, "error", err)
				return fiber.NewError(fiber.StatusInternalServerError, "Komisyon kontrol edilemedi")
			}
			if n == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Komisyon bulunamadı")
			}
		}

		src, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Dosya açılamadı")
		}
		defer src.Close()
		if err := checkContent(ext, src); err != nil {
			if errors.Is(err, ErrContentMismatch) {
				return fiber.NewError(fiber.StatusBadRequest, "Dosya içeriği uzantısıyla uyuşmuyor")
			}
			slog.Error("doküman okunamadı", "file", fh.Filename, "error", err)
			return fiber.NewError(fiber.StatusBadRequest, "Dosya açılamadı")
		}

		stored, err := store.Save(src, ext)
		if err != nil {
			slog.Error("doküman kaydedilemedi", "file", fh.Filename, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Dosya kaydedilemedi")
		}

		doc := models.Document{
			Title:        form.Title,
			Description:  form.Description,
			Category:     form.Category,
			CommissionID: form.CommissionID,
			OriginalName: fh.Filename,
			StoredName:   stored,
			MimeType:     mime,
			Size:         fh.Size,
			UploadedBy:   auth.UserID(c),
		}
		if err := database.DB.WithContext(c.UserContext()).Create(&doc).Error; err != nil {
			_ = store.Remove(stored)
			return fiber.NewError(fiber.StatusInternalServerError, "Doküman kaydı oluşturulamadı")
		}
		return respond.Created(c, "Doküman yüklendi", doc)
	}
}

// GET /api/documents/:id/download
func DownloadDocumentHandler(cfg *config.Config) fiber.Handler {
	store := NewStore(cfg.UploadDir)
	return func(c *fiber.Ctx) error {
		doc, err := findDocument(c)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, doc.MimeType)
		if err := c.Download(store.Path(doc.StoredName), doc.OriginalName); err != nil {
			slog.Warn("doküman dosyası okunamadı", "document_id", doc.ID, "error", err)
			return fiber.NewError(fiber.StatusNotFound, "Doküman dosyası bulunamadı")
		}
		return nil
	}
}

// DELETE /api/documents/:id
func DeleteDocumentHandler(cfg *config.Config) fiber.Handler {
	store := NewStore(cfg.UploadDir)
	return func(c *fiber.Ctx) error {
		doc, err := findDocument(c)
		if err != nil {
			return err
		}
		if doc.UploadedBy != auth.UserID(c) && !auth.IsAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "Bu dokümanı silme yetkiniz yok")
		}
		if err := database.DB.WithContext(c.UserContext()).Delete(doc).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Doküman silinemedi")
		}
		if err := store.Remove(doc.StoredName); err != nil {
			slog.Warn("doküman dosyası silinemedi", "document_id", doc.ID, "error", err)
		}
		return respond.Message(c, "Doküman silindi")
	}
}

func Register(r fiber.Router, cfg *config.Config) {
	g := r.Group("/documents", auth.RequireMember())
	g.Get("/", ListDocumentsHandler())
	g.Post("/", UploadDocumentHandler(cfg))
	g.Get("/:id/download", DownloadDocumentHandler(cfg))
	g.Delete("/:id", DeleteDocumentHandler(cfg))
}
