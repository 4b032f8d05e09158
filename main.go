// Package main provides the main entry point for the LinkDMs outreach engine
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/linkdms/linkdms/app/handlers"
	"github.com/linkdms/linkdms/app/middleware"
	"github.com/linkdms/linkdms/app/router"
	"github.com/linkdms/linkdms/app/scheduler"
	"github.com/linkdms/linkdms/app/services"
	businessflow "github.com/linkdms/linkdms/business_flow"
	"github.com/linkdms/linkdms/config"
	"github.com/linkdms/linkdms/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting LinkDMs outreach engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging mirrors application logs to a rotating file when configured
func setupLogging(cfg config.LoggingConfig) {
	if cfg.FilePath == "" {
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    100, // megabytes
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}))
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client backing the throttle counters.
// Returns nil when Redis is disabled; the throttle then falls back to
// database aggregation.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		log.Println("Redis disabled, throttle counters use database aggregation")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	identityRepo := repository.NewIdentityContextRepository(db)
	prospectRepo := repository.NewProspectRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	followUpRepo := repository.NewFollowUpRepository(db)
	executionRepo := repository.NewExecutionLogRepository(db)
	batchRepo := repository.NewBatchScheduleRepository(db)

	// Initialize services
	agentClient := services.NewBrowserAgentClient(cfg.Agent.BaseURL, cfg.Agent.APIKey, cfg.Agent.ProjectID, cfg.Agent.Timeout)

	textGen, err := services.NewGenAITextService(cfg.TextGen.APIKey, cfg.TextGen.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize text generation service: %w", err)
	}

	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.TokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	throttle := businessflow.NewSafetyThrottle(campaignRepo, followUpRepo, rc, businessflow.ThrottleSettings{
		UserDailyCap:       cfg.Throttle.UserDailyCap,
		FollowUpHourlyCap:  cfg.Throttle.FollowUpHourly,
		FollowUpDailyCap:   cfg.Throttle.FollowUpDaily,
		FollowUpMinSpacing: cfg.Throttle.FollowUpSpacing,
	})

	// Initialize flows
	runFlow := businessflow.NewCampaignRunFlow(
		campaignRepo,
		identityRepo,
		prospectRepo,
		inviteRepo,
		followUpRepo,
		executionRepo,
		throttle,
		agentClient,
		textGen,
		cfg.Engine.PauseMin,
		cfg.Engine.PauseMax,
	)

	followUpFlow := businessflow.NewFollowUpFlow(
		campaignRepo,
		identityRepo,
		prospectRepo,
		followUpRepo,
		executionRepo,
		throttle,
		agentClient,
		textGen,
		cfg.Throttle.FollowUpDelay,
		cfg.Engine.PauseMin,
		cfg.Engine.PauseMax,
	)

	// Initialize handlers and middleware
	outreachHandler := handlers.NewOutreachHandler(runFlow, followUpFlow, cfg.Server.RunTimeout, cfg.Server.Version)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(outreachHandler, authMiddleware, cfg.Security.AllowedOrigins)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewCampaignScheduler(
			campaignRepo,
			batchRepo,
			runFlow,
			followUpFlow,
			cfg.Scheduler.Interval,
			cfg.Scheduler.RunBudget,
			cfg.Scheduler.LogPath,
		)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
		log.Printf("Campaign scheduler started with %s interval", cfg.Scheduler.Interval)
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
