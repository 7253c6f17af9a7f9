package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func toJSON(v any) string {
	// PostgreSQL jsonb için boş string yerine "null" kullanılmalı
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// WriteLog appends an audit record using db, which may be a transaction so
// the record commits or rolls back with the change it describes.
func WriteLog(ctx context.Context, db *gorm.DB, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}

	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// Record writes a log entry outside of any transaction. Failures are logged
// and swallowed; the audited operation has already succeeded.
func Record(ctx context.Context, db *gorm.DB, opts LogOptions) {
	if err := WriteLog(ctx, db, opts); err != nil {
		slog.Warn("audit log yazılamadı",
			"entity_type", opts.EntityType,
			"entity_id", opts.EntityID,
			"error", err,
		)
	}
}
