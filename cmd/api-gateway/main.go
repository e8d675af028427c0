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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mvdeventer/drive-alive-api/api/swagger"
	"github.com/mvdeventer/drive-alive-api/internal/gateway"
	"github.com/mvdeventer/drive-alive-api/internal/handler"
	"github.com/mvdeventer/drive-alive-api/internal/middleware"
	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/internal/repository"
	"github.com/mvdeventer/drive-alive-api/internal/service"
	"github.com/mvdeventer/drive-alive-api/pkg/cache"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
	"github.com/mvdeventer/drive-alive-api/pkg/database"
	"github.com/mvdeventer/drive-alive-api/pkg/logger"
	"github.com/mvdeventer/drive-alive-api/pkg/storage"
	corsmiddleware "github.com/mvdeventer/drive-alive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mvdeventer/drive-alive-api/pkg/middleware/requestid"
)

// @title Drive Alive API
// @version 1.0.0
// @description Availability and booking engine for driving lessons
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	exceptionRepo := repository.NewExceptionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	sessionRepo := repository.NewPaymentSessionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Availability.CacheTTL, logr, cfg.Availability.CacheEnabled && redisClient != nil)
	availabilitySvc := service.NewAvailabilityService(scheduleRepo, exceptionRepo, bookingRepo, cacheSvc, cfg.Availability, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, exceptionRepo, availabilitySvc, validate, logr)
	authSvc := service.NewAuthService(userRepo, cfg.JWT, validate, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Export.SigningSecret, cfg.Export.URLTTL)
	bookingSvc := service.NewBookingService(bookingRepo, userRepo, availabilitySvc, exportStore, exportSigner, logr)

	notifySvc := service.NewNotificationService(service.NewLogNotifier(logr), cfg.Notify, logr)
	notifySvc.Start(ctx)
	defer notifySvc.Stop()

	checkout := gateway.NewCheckoutClient(cfg.Payment)
	sessionSvc := service.NewPaymentSessionService(sessionRepo, bookingRepo, availabilitySvc, checkout, metrics, cfg.Booking, cfg.Payment, cfg.Availability.MinLeadTime, validate, logr)
	settlementSvc := service.NewSettlementService(sessionRepo, bookingRepo, availabilitySvc, notifySvc, metrics, validate, logr)

	go sessionSvc.RunSweeper(ctx, cfg.Payment.SweepInterval)

	authHandler := handler.NewAuthHandler(authSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	bookingHandler := handler.NewBookingHandler(sessionSvc, bookingSvc)
	webhookHandler := handler.NewWebhookHandler(settlementSvc, cfg.Payment.WebhookSecret)
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	api.POST("/payments/notify", webhookHandler.Notify)

	instructors := api.Group("/instructors")
	instructors.GET("/:id/availability", availabilityHandler.Resolve)
	instructors.GET("/:id/schedule", scheduleHandler.GetWeek)

	instructorWrite := instructors.Group("", middleware.JWT(authSvc), middleware.RBAC(string(models.RoleAdmin), "SELF"))
	instructorWrite.PUT("/:id/schedule", middleware.Audit(userRepo, models.AuditActionScheduleReplace, "schedule"), scheduleHandler.ReplaceWeek)
	instructorWrite.GET("/:id/exceptions", scheduleHandler.ListExceptions)
	instructorWrite.POST("/:id/exceptions", middleware.Audit(userRepo, models.AuditActionExceptionCreate, "exception"), scheduleHandler.CreateException)
	instructorWrite.DELETE("/:id/exceptions/:exceptionId", middleware.Audit(userRepo, models.AuditActionExceptionDelete, "exception"), scheduleHandler.DeleteException)
	instructorWrite.GET("/:id/bookings", bookingHandler.ListByInstructor)
	instructorWrite.GET("/:id/bookings/export", bookingHandler.Export)
	instructorWrite.POST("/:id/bookings/export-link", bookingHandler.ExportLink)

	api.GET("/exports/:token", bookingHandler.Download)

	bookings := api.Group("/bookings", middleware.JWT(authSvc))
	bookings.GET("", bookingHandler.ListMine)
	bookings.POST("/sessions", middleware.RBAC(string(models.RoleStudent), string(models.RoleAdmin)), bookingHandler.CreateSession)
	bookings.GET("/sessions/:id", bookingHandler.SessionStatus)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
