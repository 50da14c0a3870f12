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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-grading-engine/api/swagger"
	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-grading-engine/internal/middleware"
	"github.com/noah-isme/sma-grading-engine/internal/repository"
	"github.com/noah-isme/sma-grading-engine/internal/service"
	"github.com/noah-isme/sma-grading-engine/pkg/cache"
	"github.com/noah-isme/sma-grading-engine/pkg/config"
	"github.com/noah-isme/sma-grading-engine/pkg/database"
	"github.com/noah-isme/sma-grading-engine/pkg/events"
	"github.com/noah-isme/sma-grading-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-grading-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-grading-engine/pkg/middleware/requestid"
)

// @title SMA Grading Engine
// @version 1.0.0
// @description Grade computation, ranking and promotion for the school gradebook
// @BasePath /
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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, grading config cache disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		repo := repository.NewCacheRepository(redisClient, logr)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Grading.ConfigCacheTTL, logr, redisClient != nil)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		kafka, err := events.NewKafkaPublisher(cfg.Events, logr)
		if err != nil {
			logr.Warn("kafka publisher unavailable, events disabled", zap.Error(err))
		} else {
			publisher = kafka
		}
	}
	defer publisher.Close() //nolint:errcheck

	validate := validator.New()

	terms := repository.NewTermRepository(db)
	directory := repository.NewDirectoryRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	scores := repository.NewScoreRepository(db, cfg.Grading.BatchSize)
	grades := repository.NewSubjectGradeRepository(db, cfg.Grading.BatchSize)
	reports := repository.NewTermReportRepository(db, cfg.Grading.BatchSize)
	configs := service.NewGradingConfigService(repository.NewGradingConfigRepository(db), cacheSvc, cfg.Grading.ConfigCacheTTL, logr)

	guard := service.NewGradeLockGuard(terms)

	gradeSvc := service.NewGradeService(db, directory, assignments, scores, grades, reports, configs, guard, publisher, metrics, validate, logr,
		service.GradeServiceOptions{RefreshSubjectRanks: cfg.Grading.IncrementalRankRefresh})
	recalcSvc := service.NewRecalculationService(db, directory, assignments, scores, grades, reports, configs, guard, publisher, metrics, validate, logr,
		service.RecalculationOptions{
			FinalTermNumber: cfg.Grading.FinalTermNumber,
			AggregatePolicy: grading.AggregatePolicy(cfg.Grading.AggregatePolicy),
		})
	trigger := service.NewRecalcTrigger(gradeSvc, metrics, logr)
	scoreSvc := service.NewScoreService(db, scores, assignments, directory, guard, trigger, validate, logr)
	promotionSvc := service.NewPromotionService(reports, grades, configs, validate)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Grades:    handler.NewGradeHandler(gradeSvc),
		Classes:   handler.NewClassHandler(recalcSvc),
		Scores:    handler.NewScoreHandler(scoreSvc),
		Promotion: handler.NewPromotionHandler(promotionSvc),
		Config:    handler.NewGradingConfigHandler(configs),
		Metrics:   handler.NewMetricsHandler(metrics, db),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
