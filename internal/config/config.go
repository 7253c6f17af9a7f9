package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether outgoing mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

type Config struct {
	HTTPPort       string
	DatabaseDSN    string
	DBMaxOpenConns int
	DBConnTimeout  time.Duration
	JWTSecret      string
	JWTTTL         time.Duration
	CORSOrigins    string
	UploadDir      string // Dokümanların kaydedileceği klasör
	MaxUploadBytes int64
	SMTP           SMTPConfig
	Admin          AdminSeed
	LogLevel       string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".env okunamadı: %w", err)
	}

	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
		DBConnTimeout:  getEnvDuration("DB_CONN_TIMEOUT", 5*time.Second),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getEnvDuration("JWT_TTL", 24*time.Hour),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) * 1024 * 1024,
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("MAIL_FROM"),
		},
		Admin: AdminSeed{
			Name:     getEnv("ADMIN_NAME", "Sistem Yöneticisi"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !cfg.SMTP.Enabled() {
		slog.Warn("SMTP_HOST tanımlı değil, toplu e-posta gönderimi devre dışı")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment değişkeni tanımlanmamış")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET en az 32 karakter olmalıdır")
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN environment değişkeni tanımlanmamış")
	}
	if c.DBMaxOpenConns <= 0 {
		return errors.New("DB_MAX_OPEN_CONNS pozitif olmalı")
	}
	if c.SMTP.Enabled() {
		if c.SMTP.Password == "" {
			return errors.New("SMTP_HOST tanımlıyken SMTP_PASSWORD zorunludur")
		}
		if c.SMTP.From == "" {
			return errors.New("SMTP_HOST tanımlıyken MAIL_FROM zorunludur")
		}
	}
	return nil
}

// RequireAdminSeed is used by the migrate command; the server never seeds.
func (c *Config) RequireAdminSeed() error {
	if c.Admin.Email == "" || c.Admin.Password == "" {
		return errors.New("ADMIN_EMAIL ve ADMIN_PASSWORD tanımlanmalı")
	}
	if len(c.Admin.Password) < 8 {
		return errors.New("ADMIN_PASSWORD en az 8 karakter olmalı")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("geçersiz sayısal değer, varsayılan kullanılıyor", "key", key, "value", v)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("geçersiz süre değeri, varsayılan kullanılıyor", "key", key, "value", v)
		return def
	}
	return d
}
