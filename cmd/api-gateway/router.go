package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/internal/handler"
	"github.com/noah-isme/community-class-api/internal/middleware"
	"github.com/noah-isme/community-class-api/internal/models"
	"github.com/noah-isme/community-class-api/internal/service"
	"github.com/noah-isme/community-class-api/pkg/config"
	"github.com/noah-isme/community-class-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/community-class-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/community-class-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth    middleware.TokenValidator
	audit   middleware.AuditRecorder
	metrics *service.MetricsService

	users         *handler.UserHandler
	classes       *handler.ClassHandler
	registrations *handler.RegistrationHandler
	attendance    *handler.AttendanceHandler
	cities        *handler.CityHandler
	probes        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/health", "/ready", "/metrics"))

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	authn := middleware.JWT(deps.auth)
	admin := []gin.HandlerFunc{authn, middleware.AdminOnly()}
	audited := func(action, resource string, h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, admin...), middleware.Audit(deps.audit, logr, action, resource), h)
	}

	users := api.Group("/users")
	users.POST("", deps.users.Register)
	users.POST("/login", deps.users.Login)
	users.GET("/profile", authn, deps.users.Profile)
	users.PUT("/profile", authn, deps.users.UpdateProfile)
	users.GET("", append(admin, deps.users.List)...)
	users.GET("/export", append(admin, deps.users.Export)...)

	classes := api.Group("/classes")
	classes.GET("", deps.classes.List)
	classes.GET("/cities", deps.classes.Cities)
	classes.GET("/cities/:city", deps.classes.ListByCity)
	classes.GET("/:id", deps.classes.Get)
	classes.POST("", audited(models.AuditActionClassCreate, "class", deps.classes.Create)...)
	classes.PUT("/:id", audited(models.AuditActionClassUpdate, "class", deps.classes.Update)...)
	classes.DELETE("/:id", audited(models.AuditActionClassDelete, "class", deps.classes.Delete)...)
	classes.POST("/:id/register", authn, deps.registrations.RegisterForClass)

	registrations := api.Group("/registrations")
	registrations.POST("", authn, deps.registrations.Create)
	registrations.GET("/my", authn, deps.registrations.ListMine)
	registrations.GET("/class/:classId", append(admin, deps.registrations.ListByClass)...)
	registrations.PUT("/:registrationId", audited(models.AuditActionRegistrationUpdate, "registration", deps.registrations.Update)...)
	registrations.DELETE("/:registrationId", audited(models.AuditActionRegistrationDelete, "registration", deps.registrations.Delete)...)
	registrations.PUT("/:registrationId/cancel", authn, deps.registrations.Cancel)

	attendance := api.Group("/attendance")
	attendance.POST("", audited(models.AuditActionAttendanceCreate, "attendance", deps.attendance.Create)...)
	attendance.GET("/class/:classId", append(admin, deps.attendance.ListByClass)...)
	attendance.GET("/stats/:classId", append(admin, deps.attendance.Stats)...)
	attendance.GET("/stats/:classId/export", append(admin, deps.attendance.ExportStats)...)
	attendance.GET("/:attendanceId", append(admin, deps.attendance.Get)...)
	attendance.POST("/:attendanceId/checkin", authn, deps.attendance.CheckIn)
	attendance.PUT("/:attendanceId/status", audited(models.AuditActionAttendanceStatus, "attendance", deps.attendance.UpdateStatus)...)

	cities := api.Group("/cities")
	cities.GET("", deps.cities.List)
	cities.POST("", audited(models.AuditActionCityCreate, "city", deps.cities.Create)...)
	cities.PUT("/:id", audited(models.AuditActionCityUpdate, "city", deps.cities.Update)...)
	cities.DELETE("/:id", audited(models.AuditActionCityDelete, "city", deps.cities.Delete)...)

	return r
}
