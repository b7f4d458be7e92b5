package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gokhangurbuz92/sami-app-sub000/internal/config"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/database"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/jobqueue"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/logging"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/repository"
	"github.com/Gokhangurbuz92/sami-app-sub000/internal/routes"
	chatws "github.com/Gokhangurbuz92/sami-app-sub000/internal/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load config and logging
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := database.Connect(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	// 3. Background workers
	var notifier jobqueue.Notifier
	if cfg.PushWebhookURL != "" {
		notifier = jobqueue.NewWebhookNotifier(cfg.PushWebhookURL, cfg.PushWebhookKey)
	}
	pushWorker := jobqueue.NewPushNotificationWorker(repository.NewPushTokenRepository(pool), notifier)
	queue, err := jobqueue.NewJobQueue(pool, jobqueue.Config{MaxWorkers: cfg.PushWorkers}, pushWorker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create job queue")
	}
	// Started on its own context so Stop can drain running jobs.
	if err := queue.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to start job queue")
	}

	hub := chatws.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	svc := routes.BuildServices(cfg, routes.Dependencies{Pool: pool, Hub: hub, Push: queue})
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := svc.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Error().Err(err).Str("email", cfg.AdminEmail).Msg("failed to seed admin account")
		}
	}

	// 4. Setup Fiber
	app := fiber.New(fiber.Config{BodyLimit: 12 << 20})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.Origins()}))
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	routes.RegisterRoutes(app, cfg, svc)

	// 5. Serve until a signal arrives
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	stopHub()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("job queue shutdown failed")
	}
}
