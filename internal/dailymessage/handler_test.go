package dailymessage_test

import (
	"fmt"
	"testing"
	"time"

	"kooperatif-backend/internal/dailymessage"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestTodayPrefersDatedMessage(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2026, 5, 19, 10, 30, 0, 0, time.UTC)

	_, err := dailymessage.Today(db, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, db.Create(&models.DailyMessage{Message: "eski genel", IsActive: true,
		CreatedAt: now.Add(-48 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.DailyMessage{Message: "yeni genel", IsActive: true,
		CreatedAt: now.Add(-24 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.DailyMessage{Message: "pasif", IsActive: false}).Error)
	require.NoError(t, db.Create(&models.DailyMessage{Message: "yarın", IsActive: true,
		DisplayDate: date(2026, 5, 20)}).Error)

	msg, err := dailymessage.Today(db, now)
	require.NoError(t, err)
	assert.Equal(t, "yeni genel", msg.Message)

	require.NoError(t, db.Create(&models.DailyMessage{Message: "19 Mayıs", IsActive: true,
		DisplayDate: date(2026, 5, 19)}).Error)
	msg, err = dailymessage.Today(db, now)
	require.NoError(t, err)
	assert.Equal(t, "19 Mayıs", msg.Message)
}

func TestMessageAdminEndpoints(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	app, api := testutil.NewApp(cfg)
	dailymessage.Register(api)

	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	member := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	adminTok := testutil.Token(t, cfg, admin)
	memberTok := testutil.Token(t, cfg, member)

	status, _ := testutil.Do(t, app, "POST", "/api/daily-messages", memberTok, map[string]any{"message": "x"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = testutil.Do(t, app, "POST", "/api/daily-messages", adminTok,
		map[string]any{"message": "x", "display_date": "19.05.2026"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := testutil.Do(t, app, "POST", "/api/daily-messages", adminTok,
		map[string]any{"message": "Birlikten kuvvet doğar", "author": "Atasözü"})
	require.Equal(t, fiber.StatusCreated, status, env.Message)
	id := uint(env.Data.(map[string]any)["id"].(float64))

	status, env = testutil.Do(t, app, "GET", "/api/daily-messages/today", memberTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Birlikten kuvvet doğar", env.Data.(map[string]any)["message"])

	status, _ = testutil.Do(t, app, "PUT", fmt.Sprintf("/api/daily-messages/%d", id), adminTok,
		map[string]any{"is_active": false})
	require.Equal(t, fiber.StatusOK, status)

	status, env = testutil.Do(t, app, "GET", "/api/daily-messages/today", memberTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, env.Data)

	status, _ = testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/daily-messages/%d", id), adminTok, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = testutil.Do(t, app, "DELETE", fmt.Sprintf("/api/daily-messages/%d", id), adminTok, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
