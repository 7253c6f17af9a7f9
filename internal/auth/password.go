package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"kooperatif-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 6

var (
	ErrEmailTaken       = errors.New("bu e-posta adresi zaten kayıtlı")
	ErrPasswordTooShort = fmt.Errorf("şifre en az %d karakter olmalı", MinPasswordLength)
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("şifre hashlenemedi: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewMemberInput is what both self registration and the Excel import supply.
type NewMemberInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	Password  string
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// BuildMember turns input into an active member with a hashed password.
// Registration and bulk import both go through here so the stored records
// cannot drift apart.
func BuildMember(in NewMemberInput) (models.User, error) {
	if len(in.Password) < MinPasswordLength {
		return models.User{}, ErrPasswordTooShort
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        NormalizeEmail(in.Email),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
		Role:         models.RoleMember,
		IsActive:     true,
		JoinedAt:     time.Now(),
	}, nil
}

// CreateMember builds and inserts a member; ErrEmailTaken on duplicates.
func CreateMember(ctx context.Context, db *gorm.DB, in NewMemberInput) (*models.User, error) {
	user, err := BuildMember(in)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &user, nil
}

const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomPassword generates a password for accounts created without one.
func RandomPassword(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
