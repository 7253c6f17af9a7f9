package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"kooperatif-backend/internal/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrDisabled           = errors.New("e-posta gönderimi yapılandırılmamış")
	ErrInvalidTarget      = errors.New("geçersiz alıcı hedefi")
	ErrCommissionNotFound = errors.New("komisyon bulunamadı")
	ErrNoRecipients       = errors.New("gönderilecek alıcı bulunamadı")
)

type TargetKind string

const (
	TargetAll        TargetKind = "all"
	TargetCommission TargetKind = "commission"
	TargetUsers      TargetKind = "users"
)

// sendConcurrency bounds parallel SMTP sessions.
const sendConcurrency = 4

type Target struct {
	Kind         TargetKind
	CommissionID uint
	UserIDs      []uint
}

type Failure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type Result struct {
	Total    int       `json:"total"`
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

type Service struct {
	db     *gorm.DB
	sender Sender
}

// NewService returns a mail service. A nil sender means mailing is disabled.
func NewService(db *gorm.DB, sender Sender) *Service {
	return &Service{db: db, sender: sender}
}

func (s *Service) Enabled() bool {
	return s.sender != nil
}

// Recipients resolves a target to active users.
func (s *Service) Recipients(ctx context.Context, t Target) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("users.is_active = ?", true)

	switch t.Kind {
	case TargetAll:
		q = q.Where("users.role = ?", models.RoleMember)
	case TargetCommission:
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Commission{}).Where("id = ?", t.CommissionID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrCommissionNotFound
		}
		q = q.Joins("JOIN commission_members cm ON cm.user_id = users.id").
			Where("cm.commission_id = ? AND cm.status = ?", t.CommissionID, models.MembershipActive)
	case TargetUsers:
		if len(t.UserIDs) == 0 {
			return nil, ErrInvalidTarget
		}
		q = q.Where("users.id IN ?", t.UserIDs)
	default:
		return nil, ErrInvalidTarget
	}

	var users []models.User
	if err := q.Select("users.*").Order("users.id").Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNoRecipients
	}
	return users, nil
}

// personalize fills the {{ad}} and {{soyad}} placeholders.
func personalize(body string, u models.User) string {
	return strings.NewReplacer("{{ad}}", u.FirstName, "{{soyad}}", u.LastName).Replace(body)
}

// Send mails subject/body to every recipient of t individually and logs each
// attempt. A failed recipient does not stop the others.
func (s *Service) Send(ctx context.Context, sentBy uint, t Target, subject, body string) (*Result, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	users, err := s.Recipients(ctx, t)
	if err != nil {
		return nil, err
	}

	logs := make([]models.MailLog, len(users))
	var mu sync.Mutex
	res := &Result{Total: len(users)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sendConcurrency)
	for i, u := range users {
		g.Go(func() error {
			uid := u.ID
			entry := models.MailLog{
				Subject:         subject,
				RecipientEmail:  u.Email,
				RecipientUserID: &uid,
				Status:          models.MailSent,
				SentBy:          sentBy,
			}
			if err := s.sender.Send(gctx, u.Email, subject, personalize(body, u)); err != nil {
				entry.Status = models.MailFailed
				entry.Error = truncate(err.Error(), 500)
			}
			logs[i] = entry

			mu.Lock()
			defer mu.Unlock()
			if entry.Status == models.MailSent {
				res.Sent++
			} else {
				res.Failed++
				res.Failures = append(res.Failures, Failure{Email: u.Email, Error: entry.Error})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.db.WithContext(ctx).CreateInBatches(&logs, 100).Error; err != nil {
		return res, fmt.Errorf("mail logları yazılamadı: %w", err)
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

type LogFilter struct {
	Status models.MailStatus
	UserID uint
}

func (s *Service) ListLogs(ctx context.Context, f LogFilter, page func(*gorm.DB) *gorm.DB) ([]models.MailLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.MailLog{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		q = q.Where("recipient_user_id = ?", f.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.MailLog
	if err := q.Scopes(page).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
