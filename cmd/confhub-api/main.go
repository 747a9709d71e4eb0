package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/confhub-api/api/swagger"
	"github.com/noah-isme/confhub-api/internal/handler"
	"github.com/noah-isme/confhub-api/internal/repository"
	"github.com/noah-isme/confhub-api/internal/repository/memory"
	"github.com/noah-isme/confhub-api/internal/router"
	"github.com/noah-isme/confhub-api/internal/service"
	"github.com/noah-isme/confhub-api/pkg/cache"
	"github.com/noah-isme/confhub-api/pkg/config"
	"github.com/noah-isme/confhub-api/pkg/database"
	"github.com/noah-isme/confhub-api/pkg/logger"
	"github.com/noah-isme/confhub-api/pkg/signing"
)

// @title Confhub API
// @version 1.0.0
// @description Conference management: events, registrations, mic requests, complaints and notifications
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStores()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache and realtime delivery", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	var publisher service.Publisher = service.NewLogPublisher(logr)
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "confhub:", logr)
		publisher = service.NewRedisPublisher(redisClient, cfg.Notifications.ChannelPrefix)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)

	authSvc := service.NewAuthService(stores.Users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(stores.Users, validate, logr)
	notificationSvc := service.NewNotificationService(stores.Notifications, stores.Attendees, stores.Events, cacheSvc, metricsSvc,
		stores.Users, validate, logr, service.NotificationServiceConfig{UnreadCacheTTL: cfg.Notifications.UnreadCacheTTL})
	eventSvc := service.NewEventService(stores.Events, stores.Attendees, notificationSvc, cacheSvc, stores.Users, validate, logr)
	requestSvc := service.NewRequestService(stores.Requests, stores.Events, stores.Users, validate, logr,
		service.WithRequestMetrics(metricsSvc),
		service.WithRequestCache(cacheSvc),
		service.WithUnreadRefresher(notificationSvc),
	)
	signer := signing.NewCheckInSigner(cfg.CheckIn.Secret, cfg.CheckIn.TokenTTL)
	attendanceSvc := service.NewAttendanceService(stores.Attendees, stores.Events, signer, cacheSvc, stores.Users, logr)
	dashboardSvc := service.NewDashboardService(stores.Dashboard, cacheSvc, logr, service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL})
	reportSvc := service.NewReportService(stores.Requests, stores.Events, logr)
	feedbackSvc := service.NewFeedbackService(stores.Feedback, stores.Events, cacheSvc, stores.Users, validate, logr)

	var dispatcher *service.NotificationDispatcher
	if cfg.Notifications.DispatcherEnabled {
		dispatcher = service.NewNotificationDispatcher(stores.Notifications, publisher, metricsSvc, logr, service.DispatcherConfig{
			PollInterval: cfg.Notifications.PollInterval,
			BatchSize:    cfg.Notifications.BatchSize,
			Workers:      cfg.Notifications.Workers,
			MaxAttempts:  cfg.Notifications.MaxAttempts,
			RetryInitial: cfg.Notifications.RetryInitial,
			RetryMax:     cfg.Notifications.RetryMax,
			ClaimLease:   cfg.Notifications.ClaimLease,
		})
		dispatcher.Start(ctx)
	}

	checks := map[string]handler.ReadinessCheck{"storage": stores.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine := router.New(router.Options{
		APIPrefix:        cfg.APIPrefix,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		DocsEnabled:      cfg.Docs.Enabled,
		DashboardEnabled: cfg.Dashboard.Enabled,
		ReportsEnabled:   cfg.Reports.Enabled,
	}, router.Deps{
		Auth:    authSvc,
		Audit:   stores.Users,
		Metrics: metricsSvc,
		Logger:  logr,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(userSvc),
		Events:        handler.NewEventHandler(eventSvc),
		Attendance:    handler.NewAttendanceHandler(attendanceSvc),
		Requests:      handler.NewRequestHandler(requestSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Feedback:      handler.NewFeedbackHandler(feedbackSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Reports:       handler.NewReportHandler(reportSvc),
		Metrics:       handler.NewMetricsHandler(metricsSvc, checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver, "redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (repository.Stores, func(), error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		store := memory.NewStore()
		if err := memory.Seed(store); err != nil {
			return repository.Stores{}, nil, err
		}
		logr.Info("using in-memory storage with demo data", zap.String("password", memory.DemoPassword))
		return store.Stores(), func() {}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return repository.Stores{}, nil, err
	}
	return repository.NewPostgresStores(db), func() { _ = db.Close() }, nil
}
