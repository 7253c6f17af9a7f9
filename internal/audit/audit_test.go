package audit_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/respond"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLogAndList(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	ctx := context.Background()

	require.NoError(t, audit.WriteLog(ctx, db, audit.LogOptions{
		UserID:      1,
		UserName:    "Admin",
		EntityType:  "membership_fee",
		EntityID:    10,
		Action:      models.AuditActionCreate,
		Description: "Aidat oluşturuldu",
		After:       map[string]any{"amount": 100},
	}))
	audit.Record(ctx, db, audit.LogOptions{
		UserID:     1,
		EntityType: "payment",
		EntityID:   3,
		Action:     models.AuditActionPayment,
	})

	var stored models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", "membership_fee").First(&stored).Error)
	assert.Equal(t, "null", stored.BeforeData)
	assert.JSONEq(t, `{"amount":100}`, stored.AfterData)

	app := fiber.New(fiber.Config{ErrorHandler: respond.ErrorHandler})
	app.Get("/logs", audit.ListAuditLogsHandler())

	resp, err := app.Test(httptest.NewRequest("GET", "/logs?entity_type=payment", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var env struct {
		Data struct {
			Items     []models.AuditLog `json:"items"`
			TotalRows int64             `json:"total_rows"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, int64(1), env.Data.TotalRows)
	require.Len(t, env.Data.Items, 1)
	assert.Equal(t, uint(3), env.Data.Items[0].EntityID)
}
