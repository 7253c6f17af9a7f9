package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound           = errors.New("komisyon bulunamadı")
	ErrInactive           = errors.New("komisyon aktif değil")
	ErrDuplicateName      = errors.New("bu isimde bir komisyon zaten var")
	ErrEmptyName          = errors.New("komisyon adı boş olamaz")
	ErrCapacityTooLow     = errors.New("kapasite mevcut aktif üye sayısından az olamaz")
	ErrUserNotFound       = errors.New("kullanıcı bulunamadı")
	ErrUserInactive       = errors.New("kullanıcı aktif değil")
	ErrAlreadyMember      = errors.New("kullanıcının bu komisyonda zaten kaydı var")
	ErrCommissionFull     = errors.New("komisyon kapasitesi dolu")
	ErrMembershipNotFound = errors.New("üyelik kaydı bulunamadı")
	ErrNotPending         = errors.New("başvuru beklemede değil")
	ErrNotActiveMember    = errors.New("kullanıcı komisyonun aktif üyesi değil")
	ErrLeaderCannotLeave  = errors.New("lider komisyondan ayrılamaz, yönetici ile iletişime geçin")
	ErrAlreadyManager     = errors.New("kullanıcı zaten komisyon yöneticisi")
	ErrNotManager         = errors.New("kullanıcı komisyon yöneticisi değil")
	ErrRoleChange         = errors.New("bu üyenin rolü değiştirilemez")
	ErrForbidden          = errors.New("bu komisyon için yetkiniz yok")
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID  uint
	Name    string
	IsAdmin bool
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type CreateInput struct {
	Name        string
	Description string
	MaxMembers  int
}

type UpdateInput struct {
	Name        *string
	Description *string
	MaxMembers  *int
	IsActive    *bool
}

// Summary is a commission with its membership counters.
type Summary struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	MaxMembers   int       `json:"max_members"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    uint      `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	ActiveCount  int64     `json:"active_count"`
	PendingCount int64     `json:"pending_count"`
	Available    int64     `json:"available"`
}

func newSummary(c models.Commission, active, pending int64) Summary {
	available := int64(c.MaxMembers) - active
	if available < 0 {
		available = 0
	}
	return Summary{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		MaxMembers:   c.MaxMembers,
		IsActive:     c.IsActive,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		ActiveCount:  active,
		PendingCount: pending,
		Available:    available,
	}
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (*models.Commission, error) {
	c := models.Commission{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		MaxMembers:  in.MaxMembers,
		IsActive:    true,
		CreatedBy:   actor.UserID,
	}
	if c.Name == "" {
		return nil, ErrEmptyName
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Commission{}).Where("name = ?", c.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateName
		}
		if err := tx.Create(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateName
			}
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission",
			EntityID:    c.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Komisyon oluşturuldu: %s", c.Name),
			After:       c,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Update(ctx context.Context, actor Actor, id uint, in UpdateInput) (*models.Commission, error) {
	var c models.Commission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockCommission(tx, id, &c); err != nil {
			return err
		}
		before := c

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrEmptyName
			}
			var count int64
			if err := tx.Model(&models.Commission{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateName
			}
			c.Name = name
		}
		if in.Description != nil {
			c.Description = strings.TrimSpace(*in.Description)
		}
		if in.MaxMembers != nil {
			active, err := activeCount(tx, id)
			if err != nil {
				return err
			}
			if int64(*in.MaxMembers) < active {
				return ErrCapacityTooLow
			}
			c.MaxMembers = *in.MaxMembers
		}
		if in.IsActive != nil {
			c.IsActive = *in.IsActive
		}

		if err := tx.Model(&models.Commission{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":        c.Name,
			"description": c.Description,
			"max_members": c.MaxMembers,
			"is_active":   c.IsActive,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateName
			}
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission",
			EntityID:    c.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Komisyon güncellendi: %s", c.Name),
			Before:      before,
			After:       c,
		})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Deactivate soft-deletes a commission; its membership rows are kept.
func (s *Service) Deactivate(ctx context.Context, actor Actor, id uint) error {
	inactive := false
	_, err := s.Update(ctx, actor, id, UpdateInput{IsActive: &inactive})
	return err
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]Summary, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var list []models.Commission
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}

	counts, err := s.memberCounts(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]Summary, 0, len(list))
	for _, c := range list {
		cnt := counts[c.ID]
		res = append(res, newSummary(c, cnt[models.MembershipActive], cnt[models.MembershipPending]))
	}
	return res, nil
}

func (s *Service) memberCounts(ctx context.Context) (map[uint]map[models.MembershipStatus]int64, error) {
	type row struct {
		CommissionID uint
		Status       models.MembershipStatus
		Total        int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.CommissionMember{}).
		Select("commission_id, status, COUNT(*) AS total").
		Group("commission_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uint]map[models.MembershipStatus]int64)
	for _, r := range rows {
		if out[r.CommissionID] == nil {
			out[r.CommissionID] = make(map[models.MembershipStatus]int64)
		}
		out[r.CommissionID][r.Status] = r.Total
	}
	return out, nil
}

type Detail struct {
	Summary
	Members []models.CommissionMember `json:"members"`
}

func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	var c models.Commission
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var members []models.CommissionMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("commission_id = ?", id).
		Order("status ASC, applied_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	var active, pending int64
	for _, m := range members {
		switch m.Status {
		case models.MembershipActive:
			active++
		case models.MembershipPending:
			pending++
		}
	}
	return &Detail{Summary: newSummary(c, active, pending), Members: members}, nil
}

// Apply moves (commission, user) from none to pending.
func (s *Service) Apply(ctx context.Context, commissionID, userID uint) (*models.CommissionMember, error) {
	var member models.CommissionMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		if !c.IsActive {
			return ErrInactive
		}
		if err := requireActiveUser(tx, userID); err != nil {
			return err
		}
		if err := requireNoMembership(tx, commissionID, userID); err != nil {
			return err
		}
		if err := requireCapacity(tx, &c); err != nil {
			return err
		}

		member = models.CommissionMember{
			CommissionID: commissionID,
			UserID:       userID,
			Role:         models.CommissionRoleMember,
			Status:       models.MembershipPending,
			AppliedAt:    time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Approve moves a pending application to active. Capacity is checked again
// under the commission row lock, so concurrent approvals cannot overshoot
// max_members.
func (s *Service) Approve(ctx context.Context, actor Actor, commissionID, userID uint) (*models.CommissionMember, error) {
	var member models.CommissionMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		if !c.IsActive {
			return ErrInactive
		}
		if err := authorizeManager(tx, actor, commissionID); err != nil {
			return err
		}
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Status != models.MembershipPending {
			return ErrNotPending
		}
		if err := requireCapacity(tx, &c); err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.CommissionMember{}).
			Where("id = ? AND status = ?", member.ID, models.MembershipPending).
			Updates(map[string]interface{}{
				"status":      models.MembershipActive,
				"approved_at": now,
				"approved_by": actor.UserID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotPending
		}
		member.Status = models.MembershipActive
		member.ApprovedAt = &now
		member.ApprovedBy = &actor.UserID

		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionApprove,
			Description: fmt.Sprintf("%s komisyonuna başvuru onaylandı (kullanıcı #%d)", c.Name, userID),
			After:       member,
		})
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Reject deletes a pending application.
func (s *Service) Reject(ctx context.Context, actor Actor, commissionID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		if err := authorizeManager(tx, actor, commissionID); err != nil {
			return err
		}
		var member models.CommissionMember
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Status != models.MembershipPending {
			return ErrNotPending
		}
		if err := tx.Delete(&member).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionReject,
			Description: fmt.Sprintf("%s komisyonuna başvuru reddedildi (kullanıcı #%d)", c.Name, userID),
			Before:      member,
		})
	})
}

// Leave removes the caller's own row, pending or active. Leaders must ask an
// administrator.
func (s *Service) Leave(ctx context.Context, commissionID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.CommissionMember
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Role == models.CommissionRoleLeader {
			return ErrLeaderCannotLeave
		}
		return tx.Delete(&member).Error
	})
}

// Remove deletes an active member. Managers may remove plain members; only
// administrators may remove a manager or leader.
func (s *Service) Remove(ctx context.Context, actor Actor, commissionID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		if err := authorizeManager(tx, actor, commissionID); err != nil {
			return err
		}
		var member models.CommissionMember
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Status != models.MembershipActive {
			return ErrNotActiveMember
		}
		if member.Role != models.CommissionRoleMember && !actor.IsAdmin {
			return ErrForbidden
		}
		if err := tx.Delete(&member).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("%s komisyonundan üye çıkarıldı (kullanıcı #%d)", c.Name, userID),
			Before:      member,
		})
	})
}

// AddMember lets an administrator enroll a user directly as active.
func (s *Service) AddMember(ctx context.Context, actor Actor, commissionID, userID uint) (*models.CommissionMember, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	var member models.CommissionMember
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		if !c.IsActive {
			return ErrInactive
		}
		if err := requireActiveUser(tx, userID); err != nil {
			return err
		}
		if err := requireNoMembership(tx, commissionID, userID); err != nil {
			return err
		}
		if err := requireCapacity(tx, &c); err != nil {
			return err
		}

		now := time.Now()
		member = models.CommissionMember{
			CommissionID: commissionID,
			UserID:       userID,
			Role:         models.CommissionRoleMember,
			Status:       models.MembershipActive,
			AppliedAt:    now,
			ApprovedAt:   &now,
			ApprovedBy:   &actor.UserID,
		}
		if err := tx.Create(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyMember
			}
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("%s komisyonuna üye eklendi (kullanıcı #%d)", c.Name, userID),
			After:       member,
		})
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// Promote makes an active member the commission's manager, demoting the
// previous manager in the same transaction.
func (s *Service) Promote(ctx context.Context, actor Actor, commissionID, userID uint) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		var member models.CommissionMember
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Status != models.MembershipActive {
			return ErrNotActiveMember
		}
		switch member.Role {
		case models.CommissionRoleManager:
			return ErrAlreadyManager
		case models.CommissionRoleLeader:
			return ErrRoleChange
		}

		if err := tx.Model(&models.CommissionMember{}).
			Where("commission_id = ? AND role = ?", commissionID, models.CommissionRoleManager).
			Update("role", models.CommissionRoleMember).Error; err != nil {
			return err
		}
		if err := tx.Model(&member).Update("role", models.CommissionRoleManager).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("%s komisyonunda yönetici atandı (kullanıcı #%d)", c.Name, userID),
		})
	})
}

func (s *Service) Demote(ctx context.Context, actor Actor, commissionID, userID uint) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Commission
		if err := lockCommission(tx, commissionID, &c); err != nil {
			return err
		}
		var member models.CommissionMember
		if err := findMembership(tx, commissionID, userID, &member); err != nil {
			return err
		}
		if member.Role != models.CommissionRoleManager {
			return ErrNotManager
		}
		if err := tx.Model(&member).Update("role", models.CommissionRoleMember).Error; err != nil {
			return err
		}
		return audit.WriteLog(ctx, tx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  "commission_member",
			EntityID:    member.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("%s komisyonunda yönetici görevden alındı (kullanıcı #%d)", c.Name, userID),
		})
	})
}

// PendingApplications lists pending rows; visible to admins and the manager.
func (s *Service) PendingApplications(ctx context.Context, actor Actor, commissionID uint) ([]models.CommissionMember, error) {
	db := s.db.WithContext(ctx)
	var c models.Commission
	if err := db.First(&c, commissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := authorizeManager(db, actor, commissionID); err != nil {
		return nil, err
	}

	var list []models.CommissionMember
	err := db.Preload("User").
		Where("commission_id = ? AND status = ?", commissionID, models.MembershipPending).
		Order("applied_at ASC").
		Find(&list).Error
	return list, err
}

// UserMemberships lists every commission row of userID with its commission.
func (s *Service) UserMemberships(ctx context.Context, userID uint) ([]models.CommissionMember, error) {
	var list []models.CommissionMember
	err := s.db.WithContext(ctx).
		Preload("Commission").
		Where("user_id = ?", userID).
		Order("applied_at DESC").
		Find(&list).Error
	return list, err
}

func lockCommission(tx *gorm.DB, id uint, c *models.Commission) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func activeCount(tx *gorm.DB, commissionID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.CommissionMember{}).
		Where("commission_id = ? AND status = ?", commissionID, models.MembershipActive).
		Count(&n).Error
	return n, err
}

func requireCapacity(tx *gorm.DB, c *models.Commission) error {
	n, err := activeCount(tx, c.ID)
	if err != nil {
		return err
	}
	if n >= int64(c.MaxMembers) {
		return ErrCommissionFull
	}
	return nil
}

func requireActiveUser(tx *gorm.DB, userID uint) error {
	var u models.User
	if err := tx.Select("id", "is_active").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !u.IsActive {
		return ErrUserInactive
	}
	return nil
}

func requireNoMembership(tx *gorm.DB, commissionID, userID uint) error {
	var n int64
	if err := tx.Model(&models.CommissionMember{}).
		Where("commission_id = ? AND user_id = ?", commissionID, userID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrAlreadyMember
	}
	return nil
}

func findMembership(tx *gorm.DB, commissionID, userID uint, m *models.CommissionMember) error {
	err := tx.Where("commission_id = ? AND user_id = ?", commissionID, userID).First(m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMembershipNotFound
	}
	return err
}

// authorizeManager passes administrators and the commission's active manager.
func authorizeManager(tx *gorm.DB, actor Actor, commissionID uint) error {
	if actor.IsAdmin {
		return nil
	}
	var n int64
	if err := tx.Model(&models.CommissionMember{}).
		Where("commission_id = ? AND user_id = ? AND role = ? AND status = ?",
			commissionID, actor.UserID, models.CommissionRoleManager, models.MembershipActive).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}
