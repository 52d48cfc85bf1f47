package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/clubledger/backend/internal/infrastructure/logger"
	"github.com/clubledger/backend/internal/infrastructure/metrics"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/clubledger/backend/internal/infrastructure/storage"
	"github.com/clubledger/backend/internal/interfaces/http/handler"
	"github.com/clubledger/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting clubledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	store, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureBucket(ctx); err != nil {
			log.Warn("Artifact bucket not ready", zap.Error(err))
		}
		cancel()
	}

	m := metrics.New()

	periodRepo := persistence.NewGormPeriodRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	artifactRepo := persistence.NewGormArtifactRepository(db.DB)

	closingService := billingapp.NewClosingService(db, cfg.Billing.SurchargeRate, m, log)
	statusService := billingapp.NewStatusService(invoiceRepo, log)
	artifactService := billingapp.NewArtifactService(artifactRepo, periodRepo, invoiceRepo, store,
		billingapp.ArtifactServiceConfig{
			CSVDelimiter:      rune(cfg.Export.Delimiter[0]),
			PaymentLinkBase:   cfg.Export.PaymentLinkBase,
			VisibilityRetries: cfg.Export.VisibilityRetries,
			VisibilityBackoff: cfg.Export.VisibilityBackoff,
		}, m, log)
	queryService := billingapp.NewQueryService(periodRepo, invoiceRepo)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(log, cfg.HTTP.TrustedProxies)
	if err != nil {
		log.Fatal("Failed to configure HTTP engine", zap.Error(err))
	}

	systemHandler := handler.NewSystemHandler(db)
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithHealthHandler(systemHandler.Health),
		router.WithMetricsHandler(m.Handler()),
	)
	r.Register(handler.NewBillingHandler(closingService, statusService, artifactService, queryService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
