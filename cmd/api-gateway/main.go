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
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/grade-engine-api/api/swagger"
	"github.com/noah-isme/grade-engine-api/internal/grading"
	"github.com/noah-isme/grade-engine-api/internal/handler"
	internalmiddleware "github.com/noah-isme/grade-engine-api/internal/middleware"
	"github.com/noah-isme/grade-engine-api/internal/repository"
	"github.com/noah-isme/grade-engine-api/internal/service"
	"github.com/noah-isme/grade-engine-api/pkg/cache"
	"github.com/noah-isme/grade-engine-api/pkg/config"
	"github.com/noah-isme/grade-engine-api/pkg/database"
	"github.com/noah-isme/grade-engine-api/pkg/export"
	"github.com/noah-isme/grade-engine-api/pkg/jobs"
	"github.com/noah-isme/grade-engine-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/grade-engine-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/grade-engine-api/pkg/middleware/requestid"
)

// @title Grade Engine API
// @version 1.0.0
// @description Portuguese grade calculator (CAF, CIF, CFD, CFS) and quiz auto-grading.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	decimal.MarshalJSONWithoutQuotes = true

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

	policy, err := grading.NewPolicy(cfg.Grading)
	if err != nil {
		logr.Fatal("invalid grading policy", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	checks := map[string]handler.Pinger{"postgres": handler.PingFunc(db.PingContext)}
	var cacheRepo service.CacheRepository
	if cfg.Board.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, board cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Board.CacheTTL, logr, cacheRepo != nil)

	settingsRepo := repository.NewGradeSettingsRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	annualRepo := repository.NewAnnualGradeRepository(db)
	tx := database.NewTxManager(db)

	gradebookParams := service.GradebookParams{
		Settings:    settingsRepo,
		Enrollments: enrollmentRepo,
		Periods:     repository.NewPeriodRepository(db),
		Elements:    repository.NewElementRepository(db),
		Annuals:     annualRepo,
		Tx:          tx,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	}
	recalculator := service.NewGradeRecalculator(gradebookParams)
	gradebookSvc := service.NewGradebookService(gradebookParams)
	periodSvc := service.NewPeriodGradeService(gradebookParams, recalculator)

	cfsSvc := service.NewCFSService(service.CFSServiceParams{
		Settings:    settingsRepo,
		Enrollments: enrollmentRepo,
		Annuals:     annualRepo,
		CFDs:        repository.NewCFDRepository(db),
		Snapshots:   repository.NewCFSSnapshotRepository(db),
		Tx:          tx,
		Policy:      policy,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
	})
	exportSvc := service.NewExportService(cfsSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	quizSvc := service.NewQuizService(repository.NewQuizRepository(db), nil, metrics, validate, logr)
	regradeQueue := jobs.NewQueue("quiz-regrade", quizSvc.HandleRegradeJob, jobs.QueueConfig{
		Workers:    cfg.Quiz.RegradeWorkers,
		MaxRetries: cfg.Quiz.RegradeRetries,
		RetryDelay: cfg.Quiz.RegradeRetryDelay,
		Logger:     logr,
		Retryable:  service.RegradeRetryable,
		OnExhausted: func(job jobs.Job, err error) {
			metrics.RecordRegradeFailure()
			logr.Error("quiz regrade abandoned", zap.String("job_id", job.ID), zap.Any("assignment_id", job.Payload), zap.Error(err))
		},
	})
	regradeQueue.Start(ctx)
	defer regradeQueue.Stop()
	quizSvc.SetQueue(regradeQueue)
	metrics.TrackQueue("quiz-regrade", regradeQueue.Len)

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/system", metricsHandler.System)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Gradebook: handler.NewGradebookHandler(gradebookSvc),
		Periods:   handler.NewPeriodHandler(periodSvc),
		CFS:       handler.NewCFSHandler(cfsSvc, exportSvc),
		Quiz:      handler.NewQuizHandler(quizSvc),
	}, internalmiddleware.JWT(tokens))

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
}
