package membership_test

import (
	"fmt"
	"testing"

	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeAndPaymentEndpoints(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	app, api := testutil.NewApp(cfg)
	membership.Register(api)

	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	member := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	adminTok := testutil.Token(t, cfg, admin)
	memberTok := testutil.Token(t, cfg, member)

	status, env := testutil.Do(t, app, "POST", "/api/membership/plans", adminTok,
		map[string]any{"name": "Yıllık aidat", "amount": 1200, "period_months": 12})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	planID := env.Data.(map[string]any)["id"].(float64)

	status, env = testutil.Do(t, app, "GET", "/api/membership/plans", memberTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, env.Data.([]any), 1)

	status, _ = testutil.Do(t, app, "POST", "/api/membership/fees", memberTok,
		map[string]any{"user_id": member.ID, "plan_id": planID, "due_date": "2026-01-01", "payment_type": "installments"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = testutil.Do(t, app, "POST", "/api/membership/fees", adminTok,
		map[string]any{"user_id": member.ID, "plan_id": planID, "due_date": "01.01.2026", "payment_type": "installments"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = testutil.Do(t, app, "POST", "/api/membership/fees", adminTok,
		map[string]any{"user_id": member.ID, "plan_id": planID, "due_date": "2026-01-01", "payment_type": "installments"})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	fees := env.Data.(map[string]any)["fees"].([]any)
	require.Len(t, fees, 12)
	feeID := uint(fees[0].(map[string]any)["id"].(float64))

	status, env = testutil.Do(t, app, "GET", fmt.Sprintf("/api/membership/fees?user_id=%d&page_size=5", member.ID), adminTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	page := env.Data.(map[string]any)
	assert.EqualValues(t, 12, page["total_rows"])
	assert.EqualValues(t, 3, page["total_pages"])
	assert.Len(t, page["items"].([]any), 5)

	pay := map[string]any{"fee_id": feeID, "amount": 100, "payment_method": "cash"}
	status, env = testutil.Do(t, app, "POST", "/api/membership/payments", adminTok, pay)
	require.Equal(t, fiber.StatusCreated, status, env.Message)

	status, env = testutil.Do(t, app, "POST", "/api/membership/payments", adminTok, pay)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, membership.ErrFeeAlreadyPaid.Error(), env.Message)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	status, _ = testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/membership/plans/%d", uint(planID)), adminTok, nil)
	assert.Equal(t, fiber.StatusConflict, status)
}
