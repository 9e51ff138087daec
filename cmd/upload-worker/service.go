package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltmidia/ytops-backend/internal/scanner"
	"github.com/voltmidia/ytops-backend/internal/worker"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/redis"
)

const lockRefreshInterval = 2 * time.Minute

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Lock    *worker.SingletonLock
	Scanner *scanner.Scanner
	Worker  *worker.Worker
}

// Service runs the scanner and upload worker loops under the redis
// singleton lease.
type Service struct {
	cfg     *config.Config
	logg    *logger.Logger
	db      *db.Client
	redis   *redis.Client
	lock    *worker.SingletonLock
	scanner *scanner.Scanner
	worker  *worker.Worker
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.Lock == nil {
		return nil, errors.New("singleton lock is required")
	}
	if params.Scanner == nil {
		return nil, errors.New("scanner is required")
	}
	if params.Worker == nil {
		return nil, errors.New("upload worker is required")
	}

	return &Service{
		cfg:     params.Config,
		logg:    params.Logger,
		db:      params.DB,
		redis:   params.Redis,
		lock:    params.Lock,
		scanner: params.Scanner,
		worker:  params.Worker,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	// Only the lease holder runs the loops; everyone else stands by and
	// keeps retrying so a crashed holder gets replaced.
	for {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquiring worker lock: %w", err)
		}
		if acquired {
			break
		}
		s.logg.Warn(ctx, "another upload worker instance holds the lock, standing by")
		if err := sleepCtx(ctx, lockRefreshInterval); err != nil {
			return err
		}
	}
	defer s.lock.Release(context.Background())
	s.logg.Info(ctx, "upload worker lock acquired")

	ticker := time.NewTicker(lockRefreshInterval)
	defer ticker.Stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.scanner.Run(ctx)
	}()
	go func() {
		errCh <- s.worker.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "loop stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			if err := s.lock.Refresh(ctx); err != nil {
				s.logg.Error(ctx, "worker lock lost", err)
				return err
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// serveMetrics exposes prometheus metrics and a liveness probe for the
// worker process.
func serveMetrics(logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"live"}`))
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logg.Error(context.Background(), "worker metrics server stopped", err)
	}
}
