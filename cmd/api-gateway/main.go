package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/community-class-api/api/swagger"
	"github.com/noah-isme/community-class-api/internal/handler"
	"github.com/noah-isme/community-class-api/internal/repository"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/cache"
	"github.com/noah-isme/community-class-api/pkg/config"
	"github.com/noah-isme/community-class-api/pkg/database"
	"github.com/noah-isme/community-class-api/pkg/jobs"
	"github.com/noah-isme/community-class-api/pkg/logger"
	"github.com/noah-isme/community-class-api/pkg/messaging"
)

// @title Community Class API
// @version 1.0.0
// @description Community class catalog, registrations and attendance tracking.
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	var redisClient redis.UniversalClient
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close() //nolint:errcheck
		}
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Events.Enabled {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.Events.AMQPURL, cfg.Events.Queue, logr)
		if err != nil {
			logr.Warn("rabbitmq unavailable, domain events will be dropped", zap.Error(err))
		} else {
			publisher = rabbit
		}
	}
	defer publisher.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()

	classRepo := repository.NewClassRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	userRepo := repository.NewUserRepository(db)
	cityRepo := repository.NewCityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.CatalogTTL, logr, redisClient != nil)

	eventSvc := service.NewEventService(publisher, metricsSvc, logr)
	eventQueue := jobs.NewQueue("domain-events", eventSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
	})
	eventSvc.UseQueue(eventQueue)
	eventQueue.Start(ctx)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, authSvc, validate, logr)
	classSvc := service.NewClassService(classRepo, cacheSvc, validate, logr, service.ClassServiceConfig{CatalogTTL: cfg.Cache.CatalogTTL})
	citySvc := service.NewCityService(cityRepo, cacheSvc, validate, logr, cfg.Cache.CityTTL)
	registrationSvc := service.NewRegistrationService(registrationRepo, classRepo, cacheSvc, eventSvc, metricsSvc, validate, logr,
		service.RegistrationServiceConfig{WaitlistEnabled: cfg.Registration.WaitlistEnabled})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, registrationRepo, classRepo, eventSvc, metricsSvc, validate, logr,
		service.AttendanceServiceConfig{NormalizeSessionDate: cfg.Attendance.NormalizeSessionDate})

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		audit:         userRepo,
		metrics:       metricsSvc,
		users:         handler.NewUserHandler(userSvc, authSvc),
		classes:       handler.NewClassHandler(classSvc),
		registrations: handler.NewRegistrationHandler(registrationSvc),
		attendance:    handler.NewAttendanceHandler(attendanceSvc),
		cities:        handler.NewCityHandler(citySvc),
		probes:        handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	eventQueue.Stop()
}
