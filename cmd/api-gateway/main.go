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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/ims-console-api/api/swagger"
	"github.com/noah-isme/ims-console-api/internal/handler"
	"github.com/noah-isme/ims-console-api/internal/middleware"
	"github.com/noah-isme/ims-console-api/internal/repository"
	"github.com/noah-isme/ims-console-api/internal/service"
	"github.com/noah-isme/ims-console-api/pkg/cache"
	"github.com/noah-isme/ims-console-api/pkg/config"
	"github.com/noah-isme/ims-console-api/pkg/database"
	"github.com/noah-isme/ims-console-api/pkg/export"
	"github.com/noah-isme/ims-console-api/pkg/imsclient"
	"github.com/noah-isme/ims-console-api/pkg/jobs"
	"github.com/noah-isme/ims-console-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ims-console-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ims-console-api/pkg/middleware/requestid"
	"github.com/noah-isme/ims-console-api/pkg/storage"
)

// @title IMS Console API
// @version 1.0.0
// @description Console backend for the institute management system: enquiries, admissions and the enquiry to admission conversion.
// @BasePath /api/v1
// @schemes http https
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

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(ctx, db, logr); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	ims := imsclient.New(imsclient.Options{
		BaseURL:      cfg.Upstream.BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		MaxIdleConns: cfg.Upstream.MaxIdleConns,
		Observer:     metrics,
		Logger:       logr,
	})

	enquiryRepo := repository.NewEnquiryRepository(ims)
	admissionRepo := repository.NewAdmissionRepository(ims)
	setupRepo := repository.NewSetupRepository(ims)
	stagingRepo := repository.NewStagingRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	conversionRepo := repository.NewConversionRepository(db)
	numberRepo := repository.NewAdmissionNumberRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	validator := service.NewAdmissionValidator(nil)
	tokens := service.NewTokenService(cfg.JWT)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Setup.CacheTTL, logr, cfg.Setup.CacheEnabled)
	setupSvc := service.NewSetupService(setupRepo, cacheSvc, cfg.Setup.CacheTTL, logr)
	enquirySvc := service.NewEnquiryService(enquiryRepo, logr)
	conversionSvc := service.NewConversionService(enquiryRepo, stagingRepo, conversionRepo, setupSvc, metrics, logr, service.ConversionConfig{
		StagingTTL:    cfg.Conversion.StagingTTL,
		FormRoute:     cfg.Conversion.FormRoute,
		LedgerEnabled: cfg.Conversion.LedgerEnabled,
	})
	pdf := export.NewPDFExporter()
	admissionSvc := service.NewAdmissionService(admissionRepo, numberRepo, conversionSvc, setupSvc, validator, pdf, metrics, logr, service.AdmissionConfig{
		NumberPrefix: cfg.Admissions.NumberPrefix,
		ListRoute:    cfg.Admissions.ListRoute,
	})

	var (
		exportJobs *service.ExportJobService
		queue      *jobs.Queue
	)
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			return fmt.Errorf("init export storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewExportService(admissionRepo, conversionRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, export.NewCSVExporter(), pdf)
		worker := service.NewExportWorker(exportJobRepo, exporter, cfg.Upstream.ServiceToken, cfg.Exports.WorkerRetries, logr)
		queue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			RetryDelay: 2 * time.Second,
			OnGiveUp: func(ctx context.Context, job jobs.Job, cause error) {
				exportJobs.MarkGivenUp(ctx, job, cause)
			},
			Logger: logr,
		})
		exportJobs = service.NewExportJobService(exportJobRepo, queue, exporter, logr, service.ExportJobConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		queue.Start(ctx)
		defer queue.Stop()
		exportJobs.RecoverPendingJobs(ctx)
		exportJobs.StartCleanup(ctx)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	registerRoutes(r, cfg, routeDeps{
		tokens:      tokens,
		validator:   validator,
		conversions: conversionSvc,
		admissions:  admissionSvc,
		enquiries:   enquirySvc,
		setup:       setupSvc,
		exportJobs:  exportJobs,
		metrics: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
		logger: logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logr.Sugar().Infow("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
