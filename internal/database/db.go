package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to Postgres and sizes the shared pool. It does not migrate;
// schema changes are applied by cmd/migrate.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("bağlantı havuzu alınamadı: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("veritabanına ulaşılamadı: %w", err)
	}
	return db, nil
}

// Init opens the connection and stores it in DB for the handlers.
func Init(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	slog.Info("Veritabanı bağlantısı başarılı", "max_open_conns", cfg.DBMaxOpenConns)
	return nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Commission{},
		&models.CommissionMember{},
		&models.MembershipPlan{},
		&models.FeeBatch{},
		&models.MembershipFee{},
		&models.Payment{},
		&models.AutomaticFeeRule{},
		&models.CalendarEvent{},
		&models.Document{},
		&models.DailyMessage{},
		&models.MailLog{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate hatası: %w", err)
	}
	return nil
}

// SeedAdmin creates the initial administrator unless an admin already exists.
func SeedAdmin(db *gorm.DB, seed config.AdminSeed) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("şifre hashlenemedi: %w", err)
	}

	first, last := splitName(seed.Name)
	admin := models.User{
		FirstName:    first,
		LastName:     last,
		Email:        strings.ToLower(strings.TrimSpace(seed.Email)),
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
		JoinedAt:     time.Now(),
	}
	if err := db.Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, fmt.Errorf("%s adresi başka bir kullanıcıya ait", admin.Email)
		}
		return false, fmt.Errorf("admin oluşturulamadı: %w", err)
	}
	return true, nil
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}
