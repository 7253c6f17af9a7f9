package commission

import (
	"context"
	"sync"
	"testing"

	"kooperatif-backend/internal/models"
	"kooperatif-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*Service, *gorm.DB, Actor) {
	t.Helper()
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	return NewService(db), db, Actor{UserID: admin.ID, Name: "Admin", IsAdmin: true}
}

// With SQLite the single-connection pool serializes the approvals and FOR
// UPDATE is ignored; the Postgres variant exercises the commission row lock.
func TestConcurrentApprovalsRespectCapacity(t *testing.T) {
	svc, db, admin := setup(t)
	approveConcurrently(t, svc, db, admin)
}

func TestConcurrentApprovalsRespectCapacityPostgres(t *testing.T) {
	db := testutil.PostgresDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", models.RoleAdmin)
	approveConcurrently(t, NewService(db), db, Actor{UserID: admin.ID, Name: "Admin", IsAdmin: true})
}

func approveConcurrently(t *testing.T, svc *Service, db *gorm.DB, admin Actor) {
	t.Helper()
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Eğitim", 1, admin.UserID)

	a := testutil.CreateUser(t, db, "a@example.com", models.RoleMember)
	b := testutil.CreateUser(t, db, "b@example.com", models.RoleMember)
	_, err := svc.Apply(ctx, c.ID, a.ID)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, c.ID, b.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, uid := range []uint{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, uid uint) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, admin, c.ID, uid)
		}(i, uid)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrCommissionFull):
			full++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, full)

	active, err := activeCount(db, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}

func TestCapacityTwoScenario(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Sosyal", 2, admin.UserID)

	u1 := testutil.CreateUser(t, db, "u1@example.com", models.RoleMember)
	u2 := testutil.CreateUser(t, db, "u2@example.com", models.RoleMember)
	u3 := testutil.CreateUser(t, db, "u3@example.com", models.RoleMember)

	for _, u := range []models.User{u1, u2, u3} {
		_, err := svc.Apply(ctx, c.ID, u.ID)
		require.NoError(t, err)
	}

	_, err := svc.Approve(ctx, admin, c.ID, u1.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, c.ID, u2.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, c.ID, u3.ID)
	assert.ErrorIs(t, err, ErrCommissionFull)

	// Full commission refuses new applications.
	u4 := testutil.CreateUser(t, db, "u4@example.com", models.RoleMember)
	_, err = svc.Apply(ctx, c.ID, u4.ID)
	assert.ErrorIs(t, err, ErrCommissionFull)

	// A seat freed by leaving can be filled by the waiting applicant.
	require.NoError(t, svc.Leave(ctx, c.ID, u1.ID))
	_, err = svc.Approve(ctx, admin, c.ID, u3.ID)
	require.NoError(t, err)

	detail, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, detail.ActiveCount)
	assert.EqualValues(t, 0, detail.PendingCount)
	assert.EqualValues(t, 0, detail.Available)
}

func TestApproveActiveMembershipFails(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Denetim", 5, admin.UserID)
	u := testutil.CreateUser(t, db, "u@example.com", models.RoleMember)

	_, err := svc.Apply(ctx, c.ID, u.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, admin, c.ID, u.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, admin, c.ID, u.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = svc.Apply(ctx, c.ID, u.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", models.AuditActionApprove).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestApplyRejectsInactive(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Arşiv", 5, admin.UserID)
	u := testutil.CreateUser(t, db, "u@example.com", models.RoleMember)

	require.NoError(t, svc.Deactivate(ctx, admin, c.ID))
	_, err := svc.Apply(ctx, c.ID, u.ID)
	assert.ErrorIs(t, err, ErrInactive)

	other := testutil.CreateCommission(t, db, "Açık", 5, admin.UserID)
	require.NoError(t, db.Model(&u).Update("is_active", false).Error)
	_, err = svc.Apply(ctx, other.ID, u.ID)
	assert.ErrorIs(t, err, ErrUserInactive)

	_, err = svc.Apply(ctx, 9999, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerPermissionsAndPromotion(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Kültür", 5, admin.UserID)

	m1 := testutil.CreateUser(t, db, "m1@example.com", models.RoleMember)
	m2 := testutil.CreateUser(t, db, "m2@example.com", models.RoleMember)
	applicant := testutil.CreateUser(t, db, "app@example.com", models.RoleMember)

	_, err := svc.AddMember(ctx, admin, c.ID, m1.ID)
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, admin, c.ID, m2.ID)
	require.NoError(t, err)
	_, err = svc.Apply(ctx, c.ID, applicant.ID)
	require.NoError(t, err)

	plain := Actor{UserID: m1.ID}
	_, err = svc.Approve(ctx, plain, c.ID, applicant.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Promote(ctx, admin, c.ID, m1.ID))
	assert.ErrorIs(t, svc.Promote(ctx, admin, c.ID, m1.ID), ErrAlreadyManager)

	pending, err := svc.PendingApplications(ctx, plain, c.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.Approve(ctx, plain, c.ID, applicant.ID)
	require.NoError(t, err)

	// Promoting another member demotes the previous manager.
	require.NoError(t, svc.Promote(ctx, admin, c.ID, m2.ID))
	var managers []models.CommissionMember
	require.NoError(t, db.Where("commission_id = ? AND role = ?", c.ID, models.CommissionRoleManager).Find(&managers).Error)
	require.Len(t, managers, 1)
	assert.Equal(t, m2.ID, managers[0].UserID)

	assert.ErrorIs(t, svc.Remove(ctx, plain, c.ID, applicant.ID), ErrForbidden)
	mgr := Actor{UserID: m2.ID}
	require.NoError(t, svc.Remove(ctx, mgr, c.ID, applicant.ID))
	require.NoError(t, svc.Demote(ctx, admin, c.ID, m2.ID))
	assert.ErrorIs(t, svc.Demote(ctx, admin, c.ID, m2.ID), ErrNotManager)
}

func TestLeaderCannotLeave(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Yönetim", 3, admin.UserID)
	u := testutil.CreateUser(t, db, "lider@example.com", models.RoleMember)

	m, err := svc.AddMember(ctx, admin, c.ID, u.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(m).Update("role", models.CommissionRoleLeader).Error)

	assert.ErrorIs(t, svc.Leave(ctx, c.ID, u.ID), ErrLeaderCannotLeave)
	assert.ErrorIs(t, svc.Promote(ctx, admin, c.ID, u.ID), ErrRoleChange)
	require.NoError(t, svc.Remove(ctx, admin, c.ID, u.ID))
	assert.ErrorIs(t, svc.Leave(ctx, c.ID, u.ID), ErrMembershipNotFound)
}

func TestUpdateCapacityBelowActive(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()
	c := testutil.CreateCommission(t, db, "Spor", 3, admin.UserID)
	for _, email := range []string{"s1@example.com", "s2@example.com"} {
		u := testutil.CreateUser(t, db, email, models.RoleMember)
		_, err := svc.AddMember(ctx, admin, c.ID, u.ID)
		require.NoError(t, err)
	}

	one := 1
	_, err := svc.Update(ctx, admin, c.ID, UpdateInput{MaxMembers: &one})
	assert.ErrorIs(t, err, ErrCapacityTooLow)

	two := 2
	updated, err := svc.Update(ctx, admin, c.ID, UpdateInput{MaxMembers: &two})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.MaxMembers)

	_, err = svc.Create(ctx, admin, CreateInput{Name: "Spor", MaxMembers: 4})
	assert.ErrorIs(t, err, ErrDuplicateName)

	list, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 2, list[0].ActiveCount)
}

func TestBlankCommissionNameRejected(t *testing.T) {
	svc, db, admin := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, admin, CreateInput{Name: "   ", MaxMembers: 5})
	assert.ErrorIs(t, err, ErrEmptyName)

	c := testutil.CreateCommission(t, db, "Kültür", 5, admin.UserID)
	blank := " \t "
	_, err = svc.Update(ctx, admin, c.ID, UpdateInput{Name: &blank})
	assert.ErrorIs(t, err, ErrEmptyName)

	var stored models.Commission
	require.NoError(t, db.First(&stored, c.ID).Error)
	assert.Equal(t, "Kültür", stored.Name)
}
