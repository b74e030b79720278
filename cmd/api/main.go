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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusflow/registration-api/api/swagger"
	"github.com/campusflow/registration-api/internal/handler"
	"github.com/campusflow/registration-api/internal/lock"
	"github.com/campusflow/registration-api/internal/middleware"
	"github.com/campusflow/registration-api/internal/models"
	"github.com/campusflow/registration-api/internal/repository"
	"github.com/campusflow/registration-api/internal/service"
	"github.com/campusflow/registration-api/pkg/cache"
	"github.com/campusflow/registration-api/pkg/config"
	"github.com/campusflow/registration-api/pkg/database"
	"github.com/campusflow/registration-api/pkg/logger"
	corsmiddleware "github.com/campusflow/registration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusflow/registration-api/pkg/middleware/requestid"
)

// @title CampusFlow Registration API
// @version 1.0.0
// @description Course registration backend: catalog, seat-safe enrollment, audit trail
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	// Repositories.
	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	sections := repository.NewSectionRepository(db)
	semesters := repository.NewSemesterRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	schedules := repository.NewScheduleRepository(db)
	history := repository.NewHistoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Services.
	metrics := service.NewMetricsService()
	locker := lock.NewLocker(redisClient)
	caches := service.NewCacheSync(cacheRepo, logr)
	audit := service.NewAuditService(history, logr)
	notifier := service.NewNotificationService(cfg.Notifications, logr)
	eligibility := service.NewEligibilityService(courses, enrollments, schedules, cfg.Registration.MaxCredits, logr)
	ledger := service.NewSeatLedger(sections, locker, cfg.Registration.SectionLockTTL, metrics, logr)
	authService := service.NewAuthService(users, students, cfg.JWT, logr)
	courseService := service.NewCourseService(courses, sections, caches, cfg.Registration, logr)
	sectionService := service.NewSectionService(sections, enrollments, schedules, caches, cfg.Registration, logr)
	semesterService := service.NewSemesterService(semesters)
	enrollmentService := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Enrollments: enrollments,
		Sections:    sections,
		Courses:     courses,
		Semesters:   semesters,
		Eligibility: eligibility,
		Ledger:      ledger,
		Audit:       audit,
		Caches:      caches,
		Notifier:    notifier,
		Locks:       locker,
		Metrics:     metrics,
		Logger:      logr,
	}, cfg.Registration)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	courseHandler := handler.NewCourseHandler(courseService)
	sectionHandler := handler.NewSectionHandler(sectionService)
	semesterHandler := handler.NewSemesterHandler(semesterService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, audit)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/courses", courseHandler.List)
	authed.GET("/courses/:id", courseHandler.Detail)
	authed.GET("/sections/:id", sectionHandler.Detail)
	authed.GET("/sections/:id/availability", sectionHandler.Availability)
	authed.GET("/semesters", semesterHandler.List)
	authed.GET("/semesters/:id", semesterHandler.Get)

	authed.GET("/sections/:id/roster/export",
		middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin),
		sectionHandler.ExportRoster)

	authed.POST("/enrollments",
		middleware.RequireRoles(models.RoleStudent),
		enrollmentHandler.Create)
	authed.GET("/enrollments/me",
		middleware.RequireRoles(models.RoleStudent),
		enrollmentHandler.ListMine)
	authed.DELETE("/enrollments/:id", enrollmentHandler.Drop)
	authed.GET("/enrollments",
		middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin),
		enrollmentHandler.List)
	authed.GET("/enrollments/:id/history",
		middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin),
		enrollmentHandler.History)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifier.Start(ctx)
	defer notifier.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Errorw("shutdown error", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
