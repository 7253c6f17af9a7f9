// Package testutil provides an in-memory database migrated with the real schema.
package testutil

import (
	"os"
	"strings"
	"testing"
	"time"

	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database. The pool holds a single
// connection so concurrent transactions in tests run one after another.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// PostgresDB opens TEST_DATABASE_DSN (key=value form) in a throwaway schema
// and skips the test when the variable is unset. Row locks and a real
// connection pool are only exercised here.
func PostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN tanımlı değil")
	}
	cfg := &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)}

	admin, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("postgres açılamadı: %v", err)
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		t.Fatalf("şema oluşturulamadı: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn+" search_path="+schema), cfg)
	if err != nil {
		t.Fatalf("postgres açılamadı: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		_ = admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// UseGlobalDB points database.DB at db for the duration of the test.
func UseGlobalDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
}

// CreateUser inserts an active user with the given role and password "parola123".
func CreateUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("parola123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := models.User{
		FirstName:    "Test",
		LastName:     email,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		JoinedAt:     time.Now(),
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("kullanıcı oluşturulamadı: %v", err)
	}
	return u
}

func CreateCommission(t *testing.T, db *gorm.DB, name string, maxMembers int, createdBy uint) models.Commission {
	t.Helper()
	c := models.Commission{Name: name, MaxMembers: maxMembers, IsActive: true, CreatedBy: createdBy}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("komisyon oluşturulamadı: %v", err)
	}
	return c
}

func CreatePlan(t *testing.T, db *gorm.DB, name string, amount float64, months int) models.MembershipPlan {
	t.Helper()
	p := models.MembershipPlan{Name: name, Amount: amount, PeriodMonths: months, IsActive: true}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("plan oluşturulamadı: %v", err)
	}
	return p
}
