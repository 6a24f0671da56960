package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quest-progression-system/config"
	"quest-progression-system/database"
	"quest-progression-system/handlers"
	"quest-progression-system/logger"
	"quest-progression-system/middleware"
	"quest-progression-system/services"
	"quest-progression-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, foundEnv, err := config.Load()
	if err != nil {
		logger.Init(logger.Config{Level: "info"})
		logger.Fatal("invalid configuration", "error", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		os.Stderr.WriteString("failed to initialise logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	if !foundEnv {
		logger.Warn("No .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("failed to open database", "driver", cfg.DBDriver, "error", err)
	}

	var (
		locker services.Locker     = services.NewKeyedMutex()
		cache  services.StatsCache = services.NoopStatsCache{}
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", "error", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		locker = services.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		cache = services.NewRedisStatsCache(rdb, cfg.StatsCacheTTL)
		logger.Info("Redis connected, using distributed toggle locks and stats cache")
	} else {
		logger.Warn("REDIS_URL not set, toggle locks are process-local and stats are not cached")
	}

	var sink services.ExportSink
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Sink(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			CDNBaseURL:      cfg.R2.CDNBaseURL,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", "error", err)
		}
		sink = r2
	} else {
		sink = utils.NewLocalSink(cfg.ExportDir)
		logger.Info("R2 not configured, exports are archived locally", "dir", cfg.ExportDir)
	}

	progressionService := services.NewProgressionService(db, locker, cache)
	habitService := services.NewHabitService(db)
	settingsService := services.NewSettingsService(db)
	statsService := services.NewStatsService(db, cache)
	exportService := services.NewExportService(db, sink)
	devService := services.NewDevService(progressionService, habitService, settingsService)

	app := fiber.New(fiber.Config{
		AppName:      "quest-progression-system",
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	origins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	var api fiber.Router
	switch cfg.AuthMode {
	case config.AuthModeJWT:
		api = app.Group("/", middleware.JWTAuthMiddleware(cfg.JWTSecret))
	default:
		// Only Gateway requests allowed, identity comes from its headers.
		api = app.Group("/", middleware.GatewayAuthMiddleware(cfg.GatewayToken), middleware.UserContextMiddleware())
	}

	handlers.SetupProgressionRoutes(api, progressionService)
	handlers.SetupQuestRoutes(api, habitService)
	handlers.SetupSettingsRoutes(api, settingsService)
	handlers.SetupStatsRoutes(api, statsService, exportService)
	handlers.SetupDevRoutes(api, devService)
	handlers.SetupAdminRoutes(api, progressionService)

	if cfg.BackupEnabled {
		sched, err := exportService.StartBackupScheduler(ctx, cfg.BackupInterval)
		if err != nil {
			logger.Fatal("failed to start backup scheduler", "error", err)
		}
		defer func() {
			if err := sched.Shutdown(); err != nil {
				logger.Warn("backup scheduler shutdown", "error", err)
			}
		}()
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	logger.Info("Server running", "port", cfg.Port, "auth", cfg.AuthMode, "db", cfg.DBDriver)
	logger.Info("CORS configured", "origins", cfg.AllowedOrigins)

	<-ctx.Done()
	logger.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
