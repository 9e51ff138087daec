package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voltmidia/ytops-backend/internal/sheets"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/metrics"
)

// ChannelLister yields the channels whose spreadsheets get scanned.
type ChannelLister interface {
	ListScannable(ctx context.Context) ([]models.Channel, error)
}

// Enqueuer inserts queue entries; the insert reports whether the
// duplicate guard let it through.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry *models.UploadQueueEntry) (bool, error)
}

// Stats summarize one full scan cycle.
type Stats struct {
	Channels      int
	ChannelErrors int
	RowsRead      int
	Ready         int
	Enqueued      int
	Skipped       int
}

// Params wire a Scanner.
type Params struct {
	Channels ChannelLister
	Sheets   sheets.Reader
	Queue    Enqueuer
	Logger   *logger.Logger
	Metrics  *metrics.UploadMetrics
	Config   config.ScannerConfig
}

// Scanner walks production spreadsheets and feeds ready rows into the
// upload queue. Sheet reads are rate-limited by batching with a sleep
// between batches, and a failing cycle streak trips a breaker that
// disables the loop until restart.
type Scanner struct {
	channels ChannelLister
	sheets   sheets.Reader
	queue    Enqueuer
	logg     *logger.Logger
	metrics  *metrics.UploadMetrics
	cfg      config.ScannerConfig

	consecutiveFailures int
}

// New wires the scanner.
func New(params Params) (*Scanner, error) {
	if params.Channels == nil {
		return nil, errors.New("channel lister is required")
	}
	if params.Sheets == nil {
		return nil, errors.New("sheets reader is required")
	}
	if params.Queue == nil {
		return nil, errors.New("queue enqueuer is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Scanner{
		channels: params.Channels,
		sheets:   params.Sheets,
		queue:    params.Queue,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Config,
	}, nil
}

// Run drives scan cycles on the configured interval until the context
// is cancelled or the breaker opens. The first cycle runs immediately.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logg.Info(ctx, "sheet scanner disabled by config")
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval())
	defer ticker.Stop()

	for {
		if err := s.cycle(ctx); err != nil {
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

func (s *Scanner) cycle(ctx context.Context) error {
	started := time.Now()
	stats, err := s.Scan(ctx)
	duration := time.Since(started)

	failed := err != nil || (stats.Channels > 0 && stats.ChannelErrors == stats.Channels)
	if failed {
		s.consecutiveFailures++
		s.metrics.ObserveScan("error", duration)
		s.logg.Error(s.logg.WithField(ctx, "consecutive_failures", s.consecutiveFailures),
			"sheet scan cycle failed", err)
		if s.consecutiveFailures >= s.cfg.MaxErrors {
			return fmt.Errorf("scanner breaker opened after %d consecutive failed cycles", s.consecutiveFailures)
		}
		return nil
	}

	s.consecutiveFailures = 0
	s.metrics.ObserveScan("ok", duration)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"channels":    stats.Channels,
		"rows_read":   stats.RowsRead,
		"rows_ready":  stats.Ready,
		"enqueued":    stats.Enqueued,
		"skipped":     stats.Skipped,
		"duration_ms": duration.Milliseconds(),
		"chan_errors": stats.ChannelErrors,
	}), "sheet scan cycle complete")
	return nil
}

// Scan performs one full cycle over all scannable channels. Per-channel
// failures are isolated; the cycle keeps going.
func (s *Scanner) Scan(ctx context.Context) (Stats, error) {
	var stats Stats

	list, err := s.channels.ListScannable(ctx)
	if err != nil {
		return stats, fmt.Errorf("listing scannable channels: %w", err)
	}
	stats.Channels = len(list)

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for start := 0; start < len(list); start += batchSize {
		if start > 0 {
			if err := sleepCtx(ctx, s.cfg.BatchSleep()); err != nil {
				return stats, err
			}
		}

		end := start + batchSize
		if end > len(list) {
			end = len(list)
		}
		for _, channel := range list[start:end] {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			s.scanChannel(ctx, channel, &stats)
		}
	}

	s.metrics.AddScanRows("read", stats.RowsRead)
	s.metrics.AddScanRows("ready", stats.Ready)
	s.metrics.AddScanRows("enqueued", stats.Enqueued)
	s.metrics.AddScanRows("skipped", stats.Skipped)
	return stats, nil
}

func (s *Scanner) scanChannel(ctx context.Context, channel models.Channel, stats *Stats) {
	ctx = s.logg.WithChannelID(ctx, channel.ID)
	if channel.SpreadsheetID == nil || *channel.SpreadsheetID == "" {
		return
	}
	spreadsheetID := *channel.SpreadsheetID

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.SheetTimeout())
	defer cancel()

	rows, err := s.sheets.ReadWorksheet(readCtx, spreadsheetID)
	if err != nil {
		stats.ChannelErrors++
		s.logg.Error(ctx, "reading channel spreadsheet", err)
		return
	}
	stats.RowsRead += len(rows)

	for _, row := range sheets.Tail(rows, s.cfg.TailRows) {
		if !row.Ready() {
			continue
		}
		stats.Ready++

		entry := &models.UploadQueueEntry{
			ChannelID:     channel.ID,
			SpreadsheetID: spreadsheetID,
			RowNumber:     row.Number,
			VideoURL:      row.DriveURL,
			Title:         row.Title,
			Description:   row.Description,
			Subniche:      channel.Subniche,
			Language:      channel.Language,
		}
		inserted, err := s.queue.Enqueue(ctx, entry)
		if err != nil {
			stats.ChannelErrors++
			s.logg.Error(s.logg.WithField(ctx, "row_number", row.Number), "enqueuing sheet row", err)
			return
		}
		if inserted {
			stats.Enqueued++
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"row_number": row.Number,
				"title":      row.Title,
			}), "sheet row enqueued for upload")
		} else {
			stats.Skipped++
		}
	}
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
