package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voltmidia/ytops-backend/internal/uploadqueue"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/metrics"
)

// EntryProcessor runs one claimed entry to a terminal state.
type EntryProcessor interface {
	Process(ctx context.Context, entry models.UploadQueueEntry) error
}

// HostGuard gates ticks on host resources.
type HostGuard interface {
	Check(ctx context.Context) error
}

// Params wire a Worker.
type Params struct {
	Queue    uploadqueue.Repository
	Pipeline EntryProcessor
	Guard    HostGuard
	Logger   *logger.Logger
	Metrics  *metrics.UploadMetrics
	Config   config.WorkerConfig
}

// Worker drains the upload queue on a fixed interval. A streak of
// failing ticks opens a breaker that stops the loop; clean ticks reset
// the streak and empty ticks leave it untouched.
type Worker struct {
	queue    uploadqueue.Repository
	pipeline EntryProcessor
	guard    HostGuard
	logg     *logger.Logger
	metrics  *metrics.UploadMetrics
	cfg      config.WorkerConfig

	consecutiveFailures int
}

// New wires the upload worker.
func New(params Params) (*Worker, error) {
	if params.Queue == nil {
		return nil, errors.New("queue repository is required")
	}
	if params.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if params.Guard == nil {
		return nil, errors.New("host guard is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Worker{
		queue:    params.Queue,
		pipeline: params.Pipeline,
		guard:    params.Guard,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Config,
	}, nil
}

// Run waits out the startup delay, then ticks on the configured
// interval until the context is cancelled or the breaker opens. The
// delay keeps the worker quiet while the rest of the platform boots.
func (w *Worker) Run(ctx context.Context) error {
	if !w.cfg.Enabled {
		w.logg.Info(ctx, "upload worker disabled by config")
		return nil
	}

	if err := sleepCtx(ctx, w.cfg.StartupDelay()); err != nil {
		return nil
	}
	w.logg.Info(ctx, "upload worker started")

	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	for {
		if err := w.runTick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) runTick(ctx context.Context) error {
	started := time.Now()
	processed, failed, err := w.Tick(ctx)
	w.metrics.ObserveTick(time.Since(started))

	switch {
	case err != nil || failed > 0:
		w.consecutiveFailures++
		streakCtx := w.logg.WithField(ctx, "consecutive_failures", w.consecutiveFailures)
		if err != nil {
			w.logg.Error(streakCtx, "upload worker tick failed", err)
		} else {
			w.logg.Warn(streakCtx, "upload worker tick had failing entries")
		}
		if w.consecutiveFailures >= w.cfg.MaxErrors {
			return fmt.Errorf("upload worker breaker opened after %d consecutive failing ticks", w.consecutiveFailures)
		}
	case processed > 0:
		w.consecutiveFailures = 0
	}
	// An empty tick counts neither way.
	return nil
}

// Tick claims one batch and processes every entry concurrently. It
// reports how many entries ran and how many of those failed.
func (w *Worker) Tick(ctx context.Context) (processed, failed int, err error) {
	if err := w.guard.Check(ctx); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeExhausted {
			w.logg.Warn(ctx, "skipping upload tick, host resources exhausted")
			return 0, 0, nil
		}
		return 0, 0, err
	}

	entries, err := w.queue.ClaimBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("claiming queue batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, entry := range entries {
		wg.Add(1)
		go func(entry models.UploadQueueEntry) {
			defer wg.Done()
			if err := w.pipeline.Process(ctx, entry); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	return len(entries), failed, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
