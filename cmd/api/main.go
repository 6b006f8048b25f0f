package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch-api/internal/config"
	"github.com/noah-isme/gradewatch-api/internal/crypto"
	"github.com/noah-isme/gradewatch-api/internal/database"
	"github.com/noah-isme/gradewatch-api/internal/handler"
	"github.com/noah-isme/gradewatch-api/internal/middleware"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
	"github.com/noah-isme/gradewatch-api/internal/router"
	"github.com/noah-isme/gradewatch-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	vault, err := crypto.NewVault(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("failed to initialise encryption vault: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	syncStatusRepo := repository.NewSyncStatusRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	auditService := service.NewAuditService(auditRepo, cfg.AppName, logger)
	userService := service.NewUserService(userRepo, vault, auditService, validate, logger)
	changeDetector := service.NewChangeDetector(gradeRepo, courseRepo, vault, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.AppName, natsConn, logger)
	resultsService := service.NewResultsService(gradeRepo, vault, logger)

	connector := portal.NewHTTPConnector(cfg.PortalBaseURL, cfg.PortalTimeout, logger)
	syncService, err := service.NewSyncService(
		userRepo, syncStatusRepo, settingRepo,
		userService, changeDetector, connector,
		notificationService, auditService,
		redisClient, &cfg, logger,
	)
	if err != nil {
		log.Fatalf("failed to initialise sync service: %v", err)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	notificationService.Start(rootCtx)

	userHandler := handler.NewUserHandler(userService, cfg.JWTSecret, 0, logger)
	syncHandler := handler.NewSyncHandler(syncService, logger)
	resultsHandler := handler.NewResultsHandler(resultsService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, 30*time.Second)
	adminSettingsHandler := handler.NewAdminSettingsHandler(syncService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, &cfg, router.Dependencies{
		UserHandler:          userHandler,
		SyncHandler:          syncHandler,
		ResultsHandler:       resultsHandler,
		NotificationHandler:  notificationHandler,
		AdminSettingsHandler: adminSettingsHandler,
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
	})

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if err := syncService.RunSweep(rootCtx); err != nil {
			logger.Error().Err(err).Msg("scheduled sweep failed")
		}
	}); err != nil {
		log.Fatalf("invalid sweep schedule %q: %v", cfg.SweepSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, rootCancel)
}

func waitForShutdown(app *fiber.App, cancel context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
