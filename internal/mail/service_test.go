package mail_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"kooperatif-backend/internal/mail"
	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   map[string]string
	failOn string
}

func (f *fakeSender) Send(_ context.Context, to, _, body string) error {
	if to == f.failOn {
		return errors.New("550 mailbox unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = body
	return nil
}

func TestSendLogsEveryAttempt(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	a := testutil.CreateUser(t, db, "a@example.com", models.RoleMember)
	testutil.CreateUser(t, db, "b@example.com", models.RoleMember)
	passive := testutil.CreateUser(t, db, "pasif@example.com", models.RoleMember)
	require.NoError(t, db.Model(&passive).Update("is_active", false).Error)

	sender := &fakeSender{failOn: "b@example.com"}
	svc := mail.NewService(db, sender)

	res, err := svc.Send(context.Background(), admin.ID, mail.Target{Kind: mail.TargetAll}, "Duyuru", "Merhaba {{ad}}")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b@example.com", res.Failures[0].Email)
	assert.Equal(t, "Merhaba "+a.FirstName, sender.sent["a@example.com"])

	var logs []models.MailLog
	require.NoError(t, db.Order("recipient_email").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.MailSent, logs[0].Status)
	assert.Equal(t, models.MailFailed, logs[1].Status)
	assert.True(t, strings.Contains(logs[1].Error, "550"))
}

func TestRecipientsByCommission(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	active := testutil.CreateUser(t, db, "aktif@example.com", models.RoleMember)
	pending := testutil.CreateUser(t, db, "bekleyen@example.com", models.RoleMember)
	c := testutil.CreateCommission(t, db, "Tarım", 5, admin.ID)
	require.NoError(t, db.Create(&models.CommissionMember{CommissionID: c.ID, UserID: active.ID,
		Role: models.CommissionRoleMember, Status: models.MembershipActive}).Error)
	require.NoError(t, db.Create(&models.CommissionMember{CommissionID: c.ID, UserID: pending.ID,
		Role: models.CommissionRoleMember, Status: models.MembershipPending}).Error)

	svc := mail.NewService(db, nil)
	users, err := svc.Recipients(context.Background(), mail.Target{Kind: mail.TargetCommission, CommissionID: c.ID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, active.ID, users[0].ID)

	_, err = svc.Recipients(context.Background(), mail.Target{Kind: mail.TargetCommission, CommissionID: 999})
	assert.ErrorIs(t, err, mail.ErrCommissionNotFound)
	_, err = svc.Recipients(context.Background(), mail.Target{Kind: mail.TargetUsers})
	assert.ErrorIs(t, err, mail.ErrInvalidTarget)

	_, err = svc.Send(context.Background(), admin.ID, mail.Target{Kind: mail.TargetAll}, "x", "y")
	assert.ErrorIs(t, err, mail.ErrDisabled)
}

func TestMailEndpoints(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseGlobalDB(t, db)
	cfg := testutil.Config(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	u := testutil.CreateUser(t, db, "uye@example.com", models.RoleMember)
	adminTok := testutil.Token(t, cfg, admin)

	disabled, api := testutil.NewApp(cfg)
	mail.Register(api, nil)
	status, _ := testutil.Do(t, disabled, "POST", "/api/mail/send", adminTok,
		map[string]any{"subject": "x", "body": "y", "target": "all"})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)

	app, api := testutil.NewApp(cfg)
	mail.Register(api, &fakeSender{})

	status, _ = testutil.Do(t, app, "POST", "/api/mail/send", testutil.Token(t, cfg, u),
		map[string]any{"subject": "x", "body": "y", "target": "all"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = testutil.Do(t, app, "POST", "/api/mail/send", adminTok,
		map[string]any{"subject": "x", "body": "y", "target": "commission"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := testutil.Do(t, app, "POST", "/api/mail/send", adminTok,
		map[string]any{"subject": "Aidat", "body": "Hatırlatma", "target": "users", "user_ids": []uint{u.ID}})
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["sent"])

	status, env = testutil.Do(t, app, "GET", "/api/mail/logs?status=sent", adminTok, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, env.Data.(map[string]any)["total_rows"])
}
