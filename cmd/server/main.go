package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staffdesk/internal/api"
	"staffdesk/internal/config"
	"staffdesk/internal/mail"
	"staffdesk/internal/metrics"
	"staffdesk/internal/model"
	"staffdesk/internal/queue"
	"staffdesk/internal/repository"
	"staffdesk/internal/service"
	"staffdesk/internal/storage"
	"staffdesk/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Initialize logger
	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 2. Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize Infrastructure
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := initDB(cfg.MySQL)
	if err != nil {
		return err
	}

	blobs, err := storage.NewBlobStorage(cfg.Storage)
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		logger.Warn("avatar bucket check failed", zap.Error(err))
	}

	// 4. Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewResetTokenRepository(db)

	// 5. Initialize Services
	mailer := mail.NewMailer(cfg.Mail)
	executor := service.NewActionExecutor(userRepo, tokenRepo, mailer, blobs, service.ExecutorConfig{
		DefaultPassword: cfg.Users.DefaultPassword,
		AppBaseURL:      cfg.Server.BaseURL,
	})

	// The queue holds no durable state and must exist exactly once per
	// process; this composition root is the only place that constructs it.
	queueSvc := service.NewQueueService(queue.Config{
		MaxQueueSize:       cfg.Queue.MaxQueueSize,
		DefaultTTL:         cfg.Queue.DefaultTTL,
		MaxRetries:         cfg.Queue.MaxRetries,
		ProcessingInterval: cfg.Queue.ProcessingInterval,
		CleanupInterval:    cfg.Queue.CleanupInterval,
	}, executor, metrics.NewPrometheusObserver())

	authSvc := service.NewAuthService(rdb, userRepo, tokenRepo, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	// 6. Start the queue scheduler (Background Task)
	go func() {
		logger.Info("starting queue scheduler")
		queueSvc.Run(ctx)
	}()

	// 7. Setup HTTP Server
	r := api.RegisterRoutes(
		api.NewUserHandler(queueSvc, userRepo),
		api.NewQueueHandler(queueSvc),
		api.NewAuthHandler(authSvc),
		rdb,
		cfg.RateLimit.RequestsPerSecond,
		cfg.Server.Environment,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	// 8. Start Server
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// 9. Graceful Shutdown Signal Wait
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Create a deadline to wait for current requests to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Signal the scheduler to stop
	queueSvc.Stop()
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	// Simple auto-migrate for dev convenience
	err = db.AutoMigrate(
		&model.User{},
		&model.PasswordResetToken{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
