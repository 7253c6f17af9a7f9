package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kooperatif-backend/internal/admin"
	"kooperatif-backend/internal/auth"
	"kooperatif-backend/internal/calendar"
	"kooperatif-backend/internal/commission"
	"kooperatif-backend/internal/config"
	"kooperatif-backend/internal/dailymessage"
	"kooperatif-backend/internal/dashboard"
	"kooperatif-backend/internal/database"
	"kooperatif-backend/internal/documents"
	"kooperatif-backend/internal/export"
	"kooperatif-backend/internal/logging"
	"kooperatif-backend/internal/mail"
	"kooperatif-backend/internal/member"
	"kooperatif-backend/internal/membership"
	"kooperatif-backend/internal/metrics"
	"kooperatif-backend/internal/respond"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const feeSchedulerInterval = time.Hour

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("konfigürasyon hatası", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := database.Init(cfg); err != nil {
		slog.Error("veritabanı hatası", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: respond.ErrorHandler,
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
	})

	// CORS origins virgülle ayrılmış string olarak gelir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(logging.RequestLogger(auth.UserID))

	m := metrics.New()
	app.Use(m.Middleware())
	app.Get("/metrics", m.Handler())
	app.Get("/health", func(c *fiber.Ctx) error {
		return respond.Message(c, "ok")
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register", auth.RegisterHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("", auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())
	protected.Put("/auth/profile", auth.UpdateProfileHandler())
	protected.Put("/auth/password", auth.ChangePasswordHandler())

	var sender mail.Sender
	if cfg.SMTP.Enabled() {
		sender = mail.NewSMTPSender(cfg.SMTP)
	}

	admin.Register(protected)
	commission.Register(protected)
	membership.Register(protected)
	member.Register(protected)
	calendar.Register(protected)
	documents.Register(protected, cfg)
	dailymessage.Register(protected)
	mail.Register(protected, sender)
	dashboard.Register(protected)
	export.Register(protected)

	membership.NewService(database.DB).StartScheduler(ctx, feeSchedulerInterval)

	go func() {
		<-ctx.Done()
		slog.Info("sunucu kapatılıyor")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("kapatma hatası", "error", err)
		}
	}()

	slog.Info("Server çalışıyor", "port", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		slog.Error("sunucu durdu", "error", err)
		os.Exit(1)
	}
}
