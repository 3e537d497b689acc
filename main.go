package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnTengye/creditreport/config"
	"github.com/AnTengye/creditreport/handler"
	"github.com/AnTengye/creditreport/pkg/logger"
	"github.com/AnTengye/creditreport/pkg/metrics"
	"github.com/AnTengye/creditreport/service"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "store", cfg.Store.Driver, "archive", cfg.Minio.Enabled)

	reportStore, userStore, err := openStores(&cfg.Store)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// A nil Archiver disables archiving
	var archive service.Archiver
	if cfg.Minio.Enabled {
		archiveSvc, err := service.NewArchiveService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MINIO service", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
		archive = archiveSvc
	}

	m := metrics.New()
	reportSvc := service.NewReportService(reportStore, archive, service.NewCodeTables(&cfg.Codes), m)
	userSvc := service.NewUserService(userStore, &cfg.Auth)

	if err := userSvc.SeedUsers(context.Background(), cfg.Users); err != nil {
		slog.Error("failed to seed users", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.RouterDeps{
		Config:  cfg,
		Reports: reportSvc,
		Users:   userSvc,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// openStores builds the report and user stores for the configured driver
func openStores(cfg *config.StoreConfig) (service.ReportStore, service.UserStore, error) {
	if cfg.Driver == "memory" {
		slog.Warn("using in-memory storage, data is lost on restart")
		return service.NewMemoryReportStore(cfg), service.NewMemoryUserStore(), nil
	}

	db, err := service.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.NewGormReportStore(db), service.NewGormUserStore(db), nil
}
