package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voltmidia/ytops-backend/api/routes"
	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/internal/credentials"
	"github.com/voltmidia/ytops-backend/internal/drive"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/sheets"
	"github.com/voltmidia/ytops-backend/internal/uploadqueue"
	"github.com/voltmidia/ytops-backend/internal/worker"
	"github.com/voltmidia/ytops-backend/internal/youtube"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/metrics"
	"github.com/voltmidia/ytops-backend/pkg/migrate"
	"github.com/voltmidia/ytops-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	uploadMetrics := metrics.NewUploadMetrics(prometheus.DefaultRegisterer)

	channelRepo := channels.NewRepository(dbClient.DB())
	queueRepo := uploadqueue.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	credentialRepo := credentials.NewRepository(dbClient.DB())

	credentialManager, err := credentials.NewManager(credentials.ManagerParams{
		Repo:     credentialRepo,
		Channels: channelRepo,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credential manager", err)
		os.Exit(1)
	}

	sheetsClient, err := sheets.NewClient(context.Background(), cfg.Google)
	if err != nil {
		logg.Error(context.Background(), "failed to create sheets client", err)
		os.Exit(1)
	}

	uploader, err := youtube.NewClient(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create youtube client", err)
		os.Exit(1)
	}

	pipeline, err := worker.NewPipeline(worker.PipelineParams{
		Queue:       queueRepo,
		Channels:    channelRepo,
		Credentials: credentialManager,
		Downloader:  drive.NewDownloader(),
		Uploader:    uploader,
		Ledger:      ledgerRepo,
		Logger:      logg,
		Metrics:     uploadMetrics,
		Config:      cfg.Worker,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create upload pipeline", err)
		os.Exit(1)
	}

	forceService, err := worker.NewForceService(worker.ForceParams{
		Channels: channelRepo,
		Sheets:   sheetsClient,
		Queue:    queueRepo,
		Ledger:   ledgerRepo,
		Pipeline: pipeline,
		Logger:   logg,
		Metrics:  uploadMetrics,
		Scanner:  cfg.Scanner,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create force upload service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledgerRepo, channelRepo, cfg.App.Location())
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, forceService, ledgerService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
