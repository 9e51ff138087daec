package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/internal/credentials"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/uploadqueue"
	"github.com/voltmidia/ytops-backend/internal/youtube"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	"github.com/voltmidia/ytops-backend/pkg/logger"
	"github.com/voltmidia/ytops-backend/pkg/metrics"
)

// VideoDownloader fetches a Drive asset into the scratch directory.
type VideoDownloader interface {
	Download(ctx context.Context, videoURL, destDir string) (string, error)
}

// CredentialSource materializes a valid upload identity for a channel.
type CredentialSource interface {
	Materialize(ctx context.Context, channelID string) (*credentials.Credentials, error)
}

// PipelineParams wire a Pipeline.
type PipelineParams struct {
	Queue       uploadqueue.Repository
	Channels    channels.Repository
	Credentials CredentialSource
	Downloader  VideoDownloader
	Uploader    youtube.Uploader
	Ledger      ledger.Repository
	Logger      *logger.Logger
	Metrics     *metrics.UploadMetrics
	Config      config.WorkerConfig
	Now         func() time.Time
}

// Pipeline runs one queue entry end to end: download, upload, ledger.
// Every terminal outcome leaves both a final queue status and a ledger
// pair behind.
type Pipeline struct {
	queue    uploadqueue.Repository
	channels channels.Repository
	creds    CredentialSource
	drive    VideoDownloader
	uploader youtube.Uploader
	ledger   ledger.Repository
	logg     *logger.Logger
	metrics  *metrics.UploadMetrics
	cfg      config.WorkerConfig
	now      func() time.Time
}

// NewPipeline wires the upload pipeline.
func NewPipeline(params PipelineParams) (*Pipeline, error) {
	switch {
	case params.Queue == nil:
		return nil, errors.New("queue repository is required")
	case params.Channels == nil:
		return nil, errors.New("channels repository is required")
	case params.Credentials == nil:
		return nil, errors.New("credential source is required")
	case params.Downloader == nil:
		return nil, errors.New("downloader is required")
	case params.Uploader == nil:
		return nil, errors.New("uploader is required")
	case params.Ledger == nil:
		return nil, errors.New("ledger repository is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		queue:    params.Queue,
		channels: params.Channels,
		creds:    params.Credentials,
		drive:    params.Downloader,
		uploader: params.Uploader,
		ledger:   params.Ledger,
		logg:     params.Logger,
		metrics:  params.Metrics,
		cfg:      params.Config,
		now:      now,
	}, nil
}

// Process runs one claimed entry to a terminal state. The returned
// error reports failure for breaker accounting; the entry itself has
// already been finalized either way.
func (p *Pipeline) Process(ctx context.Context, entry models.UploadQueueEntry) error {
	ctx = p.logg.WithQueueEntryID(p.logg.WithChannelID(ctx, entry.ChannelID), entry.ID.String())

	channel, err := p.channels.Get(ctx, entry.ChannelID)
	if err != nil {
		return p.fail(ctx, entry, nil, fmt.Errorf("loading channel: %w", err))
	}

	startedAt := p.now()
	if err := p.queue.Transition(ctx, entry.ID, enums.QueueDownloading, uploadqueue.TransitionAux{
		StartedAt: &startedAt,
	}); err != nil {
		// A concurrent actor already moved the entry; nothing to record.
		p.logg.Warn(ctx, "queue entry not claimable, skipping")
		return nil
	}

	scratch, err := p.drive.Download(ctx, entry.VideoURL, p.cfg.TempVideoPath)
	if err != nil {
		return p.fail(ctx, entry, channel, fmt.Errorf("downloading video: %w", err))
	}
	defer p.cleanupScratch(ctx, scratch)

	if err := p.queue.Transition(ctx, entry.ID, enums.QueueUploading, uploadqueue.TransitionAux{}); err != nil {
		return p.fail(ctx, entry, channel, fmt.Errorf("marking entry uploading: %w", err))
	}

	creds, err := p.creds.Materialize(ctx, entry.ChannelID)
	if err != nil {
		return p.fail(ctx, entry, channel, fmt.Errorf("materializing channel credentials: %w", err))
	}

	params := youtube.UploadParams{
		FilePath:    scratch,
		Title:       entry.Title,
		Description: entry.Description,
		Language:    entry.Language,
	}
	videoID, err := p.uploader.Upload(ctx, creds.TokenSource(ctx), params)
	if err != nil {
		return p.fail(ctx, entry, channel, fmt.Errorf("uploading video: %w", err))
	}

	// Playlist placement is cosmetic; its failure never fails the upload.
	if channel.DefaultPlaylistID != nil && *channel.DefaultPlaylistID != "" {
		if err := p.uploader.AddToPlaylist(ctx, creds.TokenSource(ctx), *channel.DefaultPlaylistID, videoID); err != nil {
			p.logg.Error(p.logg.WithField(ctx, "playlist_id", *channel.DefaultPlaylistID),
				"adding video to playlist failed", err)
		}
	}

	completedAt := p.now()
	if err := p.queue.Transition(ctx, entry.ID, enums.QueueCompleted, uploadqueue.TransitionAux{
		CompletedAt:    &completedAt,
		YoutubeVideoID: &videoID,
	}); err != nil {
		p.logg.Error(ctx, "finalizing completed queue entry", err)
	}

	videoURL := watchURL(videoID)
	attempt := ledger.Attempt{
		ChannelID:      entry.ChannelID,
		ChannelName:    channel.Name,
		Status:         enums.LedgerSuccess,
		UploadDone:     true,
		VideoTitle:     &entry.Title,
		YoutubeVideoID: &videoID,
		VideoURL:       &videoURL,
		ProcessedAt:    completedAt,
	}
	if err := p.ledger.RecordAttempt(ctx, attempt); err != nil {
		p.logg.Error(ctx, "recording successful upload in ledger", err)
	}

	p.metrics.IncUpload(string(enums.LedgerSuccess))
	p.logg.Info(p.logg.WithField(ctx, "youtube_video_id", videoID), "video uploaded")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, entry models.UploadQueueEntry, channel *models.Channel, cause error) error {
	message := cause.Error()
	completedAt := p.now()
	if err := p.queue.Transition(ctx, entry.ID, enums.QueueFailed, uploadqueue.TransitionAux{
		CompletedAt:  &completedAt,
		ErrorMessage: &message,
	}); err != nil {
		p.logg.Error(ctx, "marking queue entry failed", err)
	}

	channelName := ""
	if channel != nil {
		channelName = channel.Name
	}
	attempt := ledger.Attempt{
		ChannelID:    entry.ChannelID,
		ChannelName:  channelName,
		Status:       enums.LedgerError,
		UploadDone:   false,
		VideoTitle:   &entry.Title,
		ProcessedAt:  completedAt,
		ErrorMessage: &message,
	}
	if err := p.ledger.RecordAttempt(ctx, attempt); err != nil {
		p.logg.Error(ctx, "recording failed upload in ledger", err)
	}

	p.metrics.IncUpload(string(enums.LedgerError))
	p.logg.Error(ctx, "upload pipeline failed", cause)
	return cause
}

func (p *Pipeline) cleanupScratch(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logg.Warn(p.logg.WithField(ctx, "path", path), "removing scratch video failed")
	}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
