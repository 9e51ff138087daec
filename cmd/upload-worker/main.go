package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/internal/credentials"
	"github.com/voltmidia/ytops-backend/internal/drive"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/scanner"
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
	logg := logger.New(logger.Options{ServiceName: "upload-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "upload-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
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
		logg.Error(ctx, "failed to create credential manager", err)
		os.Exit(1)
	}

	sheetsClient, err := sheets.NewClient(ctx, cfg.Google)
	if err != nil {
		logg.Error(ctx, "failed to create sheets client", err)
		os.Exit(1)
	}

	uploader, err := youtube.NewClient(logg)
	if err != nil {
		logg.Error(ctx, "failed to create youtube client", err)
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
		logg.Error(ctx, "failed to create upload pipeline", err)
		os.Exit(1)
	}

	sheetScanner, err := scanner.New(scanner.Params{
		Channels: channelRepo,
		Sheets:   sheetsClient,
		Queue:    queueRepo,
		Logger:   logg,
		Metrics:  uploadMetrics,
		Config:   cfg.Scanner,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sheet scanner", err)
		os.Exit(1)
	}

	uploadWorker, err := worker.New(worker.Params{
		Queue:    queueRepo,
		Pipeline: pipeline,
		Guard:    worker.NewResourceGuard(cfg.Worker),
		Logger:   logg,
		Metrics:  uploadMetrics,
		Config:   cfg.Worker,
	})
	if err != nil {
		logg.Error(ctx, "failed to create upload worker", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Lock:    worker.NewSingletonLock(redisClient, logg, "upload-worker"),
		Scanner: sheetScanner,
		Worker:  uploadWorker,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	go serveMetrics(logg, ":"+cfg.App.Port)

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "starting upload worker")
	if err := service.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "upload worker stopped unexpectedly", err)
		os.Exit(1)
	}
}
