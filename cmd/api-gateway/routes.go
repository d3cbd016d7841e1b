package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/ims-console-api/internal/handler"
	"github.com/noah-isme/ims-console-api/internal/middleware"
	"github.com/noah-isme/ims-console-api/internal/models"
	"github.com/noah-isme/ims-console-api/internal/service"
	"github.com/noah-isme/ims-console-api/pkg/config"
)

type routeDeps struct {
	tokens      *service.TokenService
	validator   *service.AdmissionValidator
	conversions *service.ConversionService
	admissions  *service.AdmissionService
	enquiries   *service.EnquiryService
	setup       *service.SetupService
	exportJobs  *service.ExportJobService
	metrics     *handler.MetricsHandler
	logger      *zap.Logger
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.metrics.Health)
	r.GET("/health/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enquiryHandler := handler.NewEnquiryHandler(deps.enquiries, deps.conversions, deps.admissions, deps.validator)
	admissionHandler := handler.NewAdmissionHandler(deps.admissions, deps.conversions, deps.validator)
	setupHandler := handler.NewSetupHandler(deps.setup)
	conversionHandler := handler.NewConversionHandler(deps.conversions)

	api := r.Group(cfg.APIPrefix)

	// The signed token is the credential for downloads.
	var exportHandler *handler.ExportHandler
	if deps.exportJobs != nil {
		exportHandler = handler.NewExportHandler(deps.exportJobs, deps.validator)
		api.GET("/export/:token", exportHandler.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.SessionGuard(deps.conversions, deps.logger))
	secured.Use(middleware.JWT(deps.tokens))

	console := secured.Group("")
	console.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCounsellor))

	enquiries := console.Group("/enquiries")
	enquiries.GET("", enquiryHandler.List)
	enquiries.GET("/:id", enquiryHandler.Get)
	enquiries.PUT("/:id/status", enquiryHandler.UpdateStatus)
	enquiries.POST("/:id/stage", enquiryHandler.Stage)
	enquiries.POST("/:id/convert", enquiryHandler.Convert)

	admissions := console.Group("/admissions")
	admissions.GET("", admissionHandler.List)
	admissions.POST("", admissionHandler.Submit)
	admissions.GET("/form", admissionHandler.Form)
	admissions.POST("/form/normalize", admissionHandler.Normalize)
	admissions.POST("/form/validate", admissionHandler.Validate)
	admissions.GET("/:id", admissionHandler.Get)
	admissions.PUT("/:id/status", admissionHandler.UpdateStatus)
	admissions.GET("/:id/slip", admissionHandler.Slip)

	setup := secured.Group("/setup")
	setup.GET("", setupHandler.Get)
	setup.GET("/form-options", setupHandler.FormOptions)
	setup.DELETE("/cache", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), setupHandler.InvalidateCache)

	admin := secured.Group("")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	admin.GET("/conversions", conversionHandler.List)

	if exportHandler != nil {
		exports := console.Group("/exports")
		exports.POST("/admissions", exportHandler.ExportAdmissions)
		exports.GET("/:id", exportHandler.Status)
		admin.POST("/exports/conversions", exportHandler.ExportConversions)
	}
}
