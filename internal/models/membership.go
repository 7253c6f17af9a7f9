package models

import "time"

type MembershipPlan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:150;uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"size:255" json:"description"`
	Amount       float64   `gorm:"type:numeric(12,2);not null" json:"amount"`
	PeriodMonths int       `gorm:"not null;default:1" json:"period_months"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type PaymentType string

const (
	PaymentTypeInstallments PaymentType = "installments"
	PaymentTypeFullPayment  PaymentType = "full_payment"
)

// FeeBatch groups the fees generated by one CreateFee call, so installments
// are found by batch_id instead of by their notes text.
type FeeBatch struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	UserID           uint        `gorm:"not null;index" json:"user_id"`
	PlanID           uint        `gorm:"not null;index" json:"plan_id"`
	PaymentType      PaymentType `gorm:"size:20;not null" json:"payment_type"`
	InstallmentCount int         `gorm:"not null" json:"installment_count"`
	TotalAmount      float64     `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	CreatedBy        uint        `json:"created_by"`
	CreatedAt        time.Time   `json:"created_at"`

	Fees []MembershipFee `gorm:"foreignKey:BatchID" json:"fees,omitempty"`
}

type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePaid    FeeStatus = "paid"
)

type MembershipFee struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	PlanID           uint       `gorm:"not null;index" json:"plan_id"`
	BatchID          *uint      `gorm:"index" json:"batch_id"`
	InstallmentNo    int        `gorm:"not null;default:1" json:"installment_no"`
	InstallmentCount int        `gorm:"not null;default:1" json:"installment_count"`
	Amount           float64    `gorm:"type:numeric(12,2);not null" json:"amount"`
	DueDate          time.Time  `gorm:"not null;index" json:"due_date"`
	Status           FeeStatus  `gorm:"size:20;not null;default:pending;index" json:"status"`
	PaidDate         *time.Time `json:"paid_date"`
	LateFee          float64    `gorm:"type:numeric(12,2);not null;default:0" json:"late_fee"`
	Notes            string     `gorm:"size:255" json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	User *User           `gorm:"constraint:OnDelete:RESTRICT" json:"user,omitempty"`
	Plan *MembershipPlan `gorm:"constraint:OnDelete:RESTRICT" json:"plan,omitempty"`
}

// TotalDue is the amount owed including the late fee.
func (f MembershipFee) TotalDue() float64 {
	return f.Amount + f.LateFee
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCreditCard   PaymentMethod = "credit_card"
	PaymentOther        PaymentMethod = "other"
)

type Payment struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	FeeID       uint          `gorm:"not null;index" json:"fee_id"`
	UserID      uint          `gorm:"not null;index" json:"user_id"`
	Amount      float64       `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method      PaymentMethod `gorm:"size:20;not null;default:cash" json:"method"`
	PaymentDate time.Time     `gorm:"not null;index" json:"payment_date"`
	Notes       string        `gorm:"size:255" json:"notes"`
	RecordedBy  uint          `json:"recorded_by"`
	CreatedAt   time.Time     `json:"created_at"`

	Fee *MembershipFee `gorm:"constraint:OnDelete:RESTRICT" json:"fee,omitempty"`
}

// AutomaticFeeRule bills every active member one fee of PlanID per month.
type AutomaticFeeRule struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PlanID        uint      `gorm:"not null;index" json:"plan_id"`
	DayOfMonth    int       `gorm:"not null" json:"day_of_month"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	LastRunPeriod string    `gorm:"size:7" json:"last_run_period"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Plan *MembershipPlan `json:"plan,omitempty"`
}
