package worker

import (
	"context"
	"errors"
	"time"

	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/sheets"
	"github.com/voltmidia/ytops-backend/internal/uploadqueue"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/metrics"
)

// Force-upload outcome statuses, surfaced verbatim over HTTP.
const (
	ForceProcessing = "processando"
	ForceNoVideo    = "sem_video"
	ForceError      = "erro"
)

// ForceResult is the synchronous answer to a force-upload request; the
// upload itself, when there is one, continues in the background.
type ForceResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ForceParams wire a ForceService.
type ForceParams struct {
	Channels channels.Repository
	Sheets   sheets.Reader
	Queue    uploadqueue.Repository
	Ledger   ledger.Repository
	Pipeline EntryProcessor
	Logger   *logger.Logger
	Metrics  *metrics.UploadMetrics
	Scanner  config.ScannerConfig
	Now      func() time.Time
}

// ForceService runs the scan-and-upload path for a single channel on
// demand. It reuses the queue as its serialization point so a scanner
// cycle racing a forced upload cannot double-enqueue the same row.
type ForceService struct {
	channels channels.Repository
	sheets   sheets.Reader
	queue    uploadqueue.Repository
	ledger   ledger.Repository
	pipeline EntryProcessor
	logg     *logger.Logger
	metrics  *metrics.UploadMetrics
	cfg      config.ScannerConfig
	now      func() time.Time
}

// NewForceService wires the on-demand upload service.
func NewForceService(params ForceParams) (*ForceService, error) {
	switch {
	case params.Channels == nil:
		return nil, errors.New("channels repository is required")
	case params.Sheets == nil:
		return nil, errors.New("sheets reader is required")
	case params.Queue == nil:
		return nil, errors.New("queue repository is required")
	case params.Ledger == nil:
		return nil, errors.New("ledger repository is required")
	case params.Pipeline == nil:
		return nil, errors.New("pipeline is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ForceService{
		channels: params.Channels,
		sheets:   params.Sheets,
		queue:    params.Queue,
		ledger:   params.Ledger,
		pipeline: params.Pipeline,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Scanner,
		now:      now,
	}, nil
}

// ForceUpload scans one channel's sheet immediately and, when a ready
// row exists, queues it and processes it in the background. A channel
// with no ready row gets a sem_video ledger pair and an untouched
// queue. Unknown channels return a not-found error for the transport
// layer to map.
func (s *ForceService) ForceUpload(ctx context.Context, channelID string) (ForceResult, error) {
	ctx = s.logg.WithChannelID(ctx, channelID)

	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		return ForceResult{}, err
	}
	if channel.SpreadsheetID == nil || *channel.SpreadsheetID == "" {
		return ForceResult{
			Status:  ForceError,
			Message: "channel has no spreadsheet configured",
		}, nil
	}
	spreadsheetID := *channel.SpreadsheetID

	readCtx, cancel := context.WithTimeout(ctx, s.cfg.SheetTimeout())
	defer cancel()
	rows, err := s.sheets.ReadWorksheet(readCtx, spreadsheetID)
	if err != nil {
		s.logg.Error(ctx, "reading spreadsheet for forced upload", err)
		return ForceResult{
			Status:  ForceError,
			Message: "failed to read channel spreadsheet",
		}, nil
	}

	row, found := firstReady(sheets.Tail(rows, s.cfg.TailRows))
	if !found {
		s.recordNoVideo(ctx, channel)
		return ForceResult{
			Status:  ForceNoVideo,
			Message: "no ready video found in spreadsheet",
		}, nil
	}

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
		s.logg.Error(ctx, "enqueuing forced upload", err)
		return ForceResult{
			Status:  ForceError,
			Message: "failed to queue video for upload",
		}, nil
	}
	if !inserted {
		return ForceResult{
			Status:  ForceProcessing,
			Message: "video already queued for upload",
		}, nil
	}

	// The HTTP response returns now; the upload continues detached from
	// the request context.
	bgCtx := s.logg.WithChannelID(context.Background(), channelID)
	go func() {
		if err := s.pipeline.Process(bgCtx, *entry); err != nil {
			s.logg.Error(bgCtx, "forced upload failed", err)
		}
	}()

	return ForceResult{
		Status:  ForceProcessing,
		Message: "video queued, upload started",
	}, nil
}

func (s *ForceService) recordNoVideo(ctx context.Context, channel *models.Channel) {
	attempt := ledger.Attempt{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Status:      enums.LedgerNoVideo,
		UploadDone:  false,
		ProcessedAt: s.now(),
	}
	if err := s.ledger.RecordAttempt(ctx, attempt); err != nil {
		s.logg.Error(ctx, "recording sem_video attempt", err)
	}
	s.metrics.IncUpload(string(enums.LedgerNoVideo))
}

func firstReady(rows []sheets.Row) (sheets.Row, bool) {
	for _, row := range rows {
		if row.Ready() {
			return row, true
		}
	}
	return sheets.Row{}, false
}
