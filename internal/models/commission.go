package models

import "time"

// Commission is a komisyon (working group) members can apply to join.
type Commission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:150;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	MaxMembers  int       `gorm:"not null" json:"max_members"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Members []CommissionMember `json:"members,omitempty"`
}

type CommissionRole string

const (
	CommissionRoleMember  CommissionRole = "member"
	CommissionRoleManager CommissionRole = "manager"
	CommissionRoleLeader  CommissionRole = "leader"
)

type MembershipStatus string

const (
	MembershipPending MembershipStatus = "pending"
	MembershipActive  MembershipStatus = "active"
)

// CommissionMember is the (commission, user) pair. The composite unique index
// keeps at most one row per pair.
type CommissionMember struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	CommissionID uint             `gorm:"not null;uniqueIndex:idx_commission_user" json:"commission_id"`
	UserID       uint             `gorm:"not null;uniqueIndex:idx_commission_user;index" json:"user_id"`
	Role         CommissionRole   `gorm:"size:20;not null;default:member" json:"role"`
	Status       MembershipStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	AppliedAt    time.Time        `json:"applied_at"`
	ApprovedAt   *time.Time       `json:"approved_at"`
	ApprovedBy   *uint            `json:"approved_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	Commission *Commission `gorm:"constraint:OnDelete:CASCADE" json:"commission,omitempty"`
	User       *User       `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
