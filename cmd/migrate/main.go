// Command migrate applies the database schema and creates the first
// administrator. It is run once per deploy, before the server starts.
package main

import (
	"log/slog"
	"os"

	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/logging"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("konfigürasyon hatası", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireAdminSeed(); err != nil {
		slog.Error("admin bilgileri eksik", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg)
	if err != nil {
		slog.Error("veritabanı hatası", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(db); err != nil {
		slog.Error("migration başarısız", "error", err)
		os.Exit(1)
	}
	slog.Info("Migration tamamlandı")

	created, err := database.SeedAdmin(db, cfg.Admin)
	if err != nil {
		slog.Error("admin oluşturulamadı", "error", err)
		os.Exit(1)
	}
	if created {
		slog.Info("Varsayılan admin oluşturuldu", "email", cfg.Admin.Email)
	} else {
		slog.Info("Admin zaten mevcut, seed atlandı")
	}
}
