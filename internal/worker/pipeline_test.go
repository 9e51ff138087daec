package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/internal/credentials"
	"github.com/voltmidia/ytops-backend/internal/ledger"
	"github.com/voltmidia/ytops-backend/internal/uploadqueue"
	"github.com/voltmidia/ytops-backend/internal/youtube"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	"github.com/voltmidia/ytops-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 8, 30, 16, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	// One connection keeps concurrent tick goroutines from tripping
	// sqlite's write lock.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.Channel{},
		&models.UploadQueueEntry{},
		&models.DailyUpload{},
		&models.UploadHistory{},
	))
	return conn
}

type fakeDownloader struct {
	err   error
	calls int
}

func (f *fakeDownloader) Download(_ context.Context, videoURL, destDir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "scratch.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeUploader struct {
	videoID     string
	uploadErr   error
	playlistErr error

	gotParams    youtube.UploadParams
	playlistID   string
	playlistVid  string
	uploadCalls  int
	playlistHits int
}

func (f *fakeUploader) Upload(_ context.Context, _ oauth2.TokenSource, params youtube.UploadParams) (string, error) {
	f.uploadCalls++
	f.gotParams = params
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return f.videoID, nil
}

func (f *fakeUploader) AddToPlaylist(_ context.Context, _ oauth2.TokenSource, playlistID, videoID string) error {
	f.playlistHits++
	f.playlistID = playlistID
	f.playlistVid = videoID
	return f.playlistErr
}

type fakeCreds struct{ err error }

func (f *fakeCreds) Materialize(_ context.Context, channelID string) (*credentials.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &credentials.Credentials{
		ChannelID: channelID,
		Token:     &oauth2.Token{AccessToken: "token", Expiry: fixedNow.Add(time.Hour)},
	}, nil
}

type pipelineFixture struct {
	db         *gorm.DB
	queue      uploadqueue.Repository
	ledger     ledger.Repository
	downloader *fakeDownloader
	uploader   *fakeUploader
	creds      *fakeCreds
	pipeline   *Pipeline
	scratchDir string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := newTestDB(t)
	f := &pipelineFixture{
		db:         db,
		queue:      uploadqueue.NewRepository(db),
		ledger:     ledger.NewRepository(db),
		downloader: &fakeDownloader{},
		uploader:   &fakeUploader{videoID: "yt-abc"},
		creds:      &fakeCreds{},
		scratchDir: t.TempDir(),
	}

	pipeline, err := NewPipeline(PipelineParams{
		Queue:       f.queue,
		Channels:    channels.NewRepository(db),
		Credentials: f.creds,
		Downloader:  f.downloader,
		Uploader:    f.uploader,
		Ledger:      f.ledger,
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Config: config.WorkerConfig{
			Enabled:       true,
			BatchSize:     5,
			MaxErrors:     5,
			TempVideoPath: f.scratchDir,
		},
		Now: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.pipeline = pipeline
	return f
}

func (f *pipelineFixture) seedChannel(t *testing.T, playlistID *string) {
	t.Helper()
	sheetID := "s1"
	require.NoError(t, f.db.Create(&models.Channel{
		ID:                "UC1",
		Name:              "Canal Um",
		Subniche:          "curiosidades",
		Language:          "pt-BR",
		DefaultPlaylistID: playlistID,
		SpreadsheetID:     &sheetID,
		Active:            true,
	}).Error)
}

func (f *pipelineFixture) seedEntry(t *testing.T) models.UploadQueueEntry {
	t.Helper()
	entry := &models.UploadQueueEntry{
		ChannelID:     "UC1",
		SpreadsheetID: "s1",
		RowNumber:     5,
		VideoURL:      "https://drive.google.com/file/d/vid1/view",
		Title:         "Título do vídeo",
		Description:   "Descrição",
		Language:      "pt-BR",
	}
	inserted, err := f.queue.Enqueue(context.Background(), entry)
	require.NoError(t, err)
	require.True(t, inserted)
	return *entry
}

func TestProcessHappyPath(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedChannel(t, nil)
	entry := f.seedEntry(t)

	require.NoError(t, f.pipeline.Process(context.Background(), entry))

	final, err := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QueueCompleted, final.Status)
	require.NotNil(t, final.YoutubeVideoID)
	assert.Equal(t, "yt-abc", *final.YoutubeVideoID)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)

	assert.Equal(t, "Título do vídeo", f.uploader.gotParams.Title)
	assert.Equal(t, "Descrição", f.uploader.gotParams.Description)
	assert.Equal(t, "pt-BR", f.uploader.gotParams.Language)
	assert.Equal(t, 0, f.uploader.playlistHits)

	daily, err := f.ledger.DailyRowsForChannel(context.Background(), "UC1", ledger.DateUTC(fixedNow))
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, enums.LedgerSuccess, daily[0].Status)
	assert.True(t, daily[0].UploadDone)
	require.NotNil(t, daily[0].VideoURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=yt-abc", *daily[0].VideoURL)

	var history []models.UploadHistory
	require.NoError(t, f.db.Find(&history).Error)
	assert.Len(t, history, 1)

	// Scratch file is gone after a successful upload.
	entries, err := os.ReadDir(f.scratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessAddsToPlaylistWhenConfigured(t *testing.T) {
	f := newPipelineFixture(t)
	playlist := "PL123"
	f.seedChannel(t, &playlist)
	entry := f.seedEntry(t)

	require.NoError(t, f.pipeline.Process(context.Background(), entry))
	assert.Equal(t, 1, f.uploader.playlistHits)
	assert.Equal(t, "PL123", f.uploader.playlistID)
	assert.Equal(t, "yt-abc", f.uploader.playlistVid)
}

func TestProcessPlaylistFailureDoesNotFailUpload(t *testing.T) {
	f := newPipelineFixture(t)
	playlist := "PL123"
	f.seedChannel(t, &playlist)
	f.uploader.playlistErr = errors.New("playlist gone")
	entry := f.seedEntry(t)

	require.NoError(t, f.pipeline.Process(context.Background(), entry))

	final, err := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QueueCompleted, final.Status)
}

func TestProcessDownloadFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedChannel(t, nil)
	f.downloader.err = errors.New("drive 403")
	entry := f.seedEntry(t)

	err := f.pipeline.Process(context.Background(), entry)
	require.Error(t, err)

	final, getErr := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.QueueFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "drive 403")
	assert.Equal(t, 0, f.uploader.uploadCalls)

	daily, err := f.ledger.DailyRowsForChannel(context.Background(), "UC1", ledger.DateUTC(fixedNow))
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, enums.LedgerError, daily[0].Status)
	assert.False(t, daily[0].UploadDone)
	require.NotNil(t, daily[0].ErrorMessage)
}

func TestProcessUploadFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedChannel(t, nil)
	f.uploader.uploadErr = errors.New("quota exceeded")
	entry := f.seedEntry(t)

	err := f.pipeline.Process(context.Background(), entry)
	require.Error(t, err)

	final, getErr := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.QueueFailed, final.Status)

	daily, err := f.ledger.DailyRowsForChannel(context.Background(), "UC1", ledger.DateUTC(fixedNow))
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, enums.LedgerError, daily[0].Status)
}

func TestProcessCredentialFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.seedChannel(t, nil)
	f.creds.err = errors.New("refresh rejected")
	entry := f.seedEntry(t)

	err := f.pipeline.Process(context.Background(), entry)
	require.Error(t, err)

	final, getErr := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, getErr)
	assert.Equal(t, enums.QueueFailed, final.Status)
	assert.Equal(t, 0, f.uploader.uploadCalls)
}

func TestProcessUnknownChannelFailsEntry(t *testing.T) {
	f := newPipelineFixture(t)
	// No channel row seeded.
	entry := &models.UploadQueueEntry{
		ChannelID:     "UC-missing",
		SpreadsheetID: "s1",
		RowNumber:     1,
		VideoURL:      "https://drive.google.com/file/d/x/view",
		Title:         "t",
	}
	inserted, err := f.queue.Enqueue(context.Background(), entry)
	require.NoError(t, err)
	require.True(t, inserted)

	require.Error(t, f.pipeline.Process(context.Background(), *entry))

	final, err := f.queue.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QueueFailed, final.Status)
	assert.Equal(t, 0, f.downloader.calls)
}
