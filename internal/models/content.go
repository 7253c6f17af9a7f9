package models

import "time"

type CalendarEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:200;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Location     string    `gorm:"size:255" json:"location"`
	StartTime    time.Time `gorm:"not null;index" json:"start_time"`
	EndTime      time.Time `gorm:"not null" json:"end_time"`
	AllDay       bool      `json:"all_day"`
	CommissionID *uint     `gorm:"index" json:"commission_id"`
	CreatedBy    uint      `gorm:"not null" json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Document struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:200;not null" json:"title"`
	Description  string    `gorm:"size:500" json:"description"`
	Category     string    `gorm:"size:50;index" json:"category"`
	CommissionID *uint     `gorm:"index" json:"commission_id"`
	OriginalName string    `gorm:"size:255;not null" json:"original_name"`
	StoredName   string    `gorm:"size:100;not null;uniqueIndex" json:"-"`
	MimeType     string    `gorm:"size:100" json:"mime_type"`
	Size         int64     `json:"size"`
	UploadedBy   uint      `gorm:"not null" json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

type DailyMessage struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Message     string     `gorm:"type:text;not null" json:"message"`
	Author      string     `gorm:"size:150" json:"author"`
	DisplayDate *time.Time `gorm:"index" json:"display_date"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	CreatedBy   uint       `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type MailStatus string

const (
	MailSent   MailStatus = "sent"
	MailFailed MailStatus = "failed"
)

type MailLog struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Subject         string     `gorm:"size:255;not null" json:"subject"`
	RecipientEmail  string     `gorm:"size:150;not null;index" json:"recipient_email"`
	RecipientUserID *uint      `gorm:"index" json:"recipient_user_id"`
	Status          MailStatus `gorm:"size:20;not null" json:"status"`
	Error           string     `gorm:"size:500" json:"error,omitempty"`
	SentBy          uint       `json:"sent_by"`
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`
}
