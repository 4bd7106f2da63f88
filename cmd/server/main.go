package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	config "github.com/phillip/shelter-donations-go/config"
	middleware "github.com/phillip/shelter-donations-go/middleware"
	repository "github.com/phillip/shelter-donations-go/repository"
	routes "github.com/phillip/shelter-donations-go/routes"
	services "github.com/phillip/shelter-donations-go/services"
	utils "github.com/phillip/shelter-donations-go/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	cfg.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ConnectMongo(ctx); err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cfg.MongoClient.Disconnect(disconnectCtx)
	}()

	db := cfg.DB()
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	var statsCache services.StatsCache
	if cfg.RedisAddr != "" {
		cache := utils.NewCache(cfg.RedisAddr, cfg.RedisPassword)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("Redis unavailable, stats will not be cached", zap.Error(err))
		} else {
			defer cache.Close()
			statsCache = cache
		}
	}

	// Repositories
	donationRepo := repository.NewDonationRepository(db)
	userRepo := repository.NewUserRepository(db)
	beneficiaryRepo := repository.NewBeneficiaryRepository(db)

	// Services
	reporting := services.NewReportingService(donationRepo, statsCache, cfg.StatsCacheTTL, logger)
	reconciler := services.NewReconciler(donationRepo, userRepo, beneficiaryRepo, logger)
	reconciler.SetNotifier(utils.NewDonationNotifier(logger))
	reconciler.SetInvalidator(reporting)
	donationSvc := services.NewDonationService(donationRepo, userRepo, beneficiaryRepo, reconciler, cfg.Sandbox, logger)

	worker := services.NewReconcileWorker(reconciler, donationRepo, cfg.ReconcileInterval, cfg.ReconcileBatch, logger)
	go worker.Start(ctx)
	defer worker.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", "Last-Modified", middleware.RequestIDHeader},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, cfg, routes.Deps{
		Users:     userRepo,
		Donations: donationSvc,
		Reporting: reporting,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("payment_sandbox", cfg.Sandbox))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
