package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmidia/ytops-backend/internal/sheets"
	"github.com/voltmidia/ytops-backend/pkg/config"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/logger"
)

type fakeChannels struct {
	list []models.Channel
	err  error
}

func (f *fakeChannels) ListScannable(context.Context) ([]models.Channel, error) {
	return f.list, f.err
}

type fakeSheets struct {
	rows map[string][]sheets.Row
	errs map[string]error
}

func (f *fakeSheets) ReadWorksheet(_ context.Context, spreadsheetID string) ([]sheets.Row, error) {
	if err := f.errs[spreadsheetID]; err != nil {
		return nil, err
	}
	return f.rows[spreadsheetID], nil
}

type fakeQueue struct {
	entries []*models.UploadQueueEntry
	dupRows map[int]bool
	err     error
}

func (f *fakeQueue) Enqueue(_ context.Context, entry *models.UploadQueueEntry) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.dupRows[entry.RowNumber] {
		return false, nil
	}
	f.entries = append(f.entries, entry)
	return true, nil
}

func scannableChannel(id, sheetID string) models.Channel {
	return models.Channel{
		ID:            id,
		Name:          "channel " + id,
		Subniche:      "curiosidades",
		Language:      "pt-BR",
		SpreadsheetID: &sheetID,
		Active:        true,
	}
}

func readySheetRow(n int, title string) sheets.Row {
	return sheets.Row{
		Number:   n,
		Title:    title,
		Status:   "done",
		DriveURL: "https://drive.google.com/file/d/f" + title + "/view",
	}
}

func testConfig() config.ScannerConfig {
	return config.ScannerConfig{
		Enabled:         true,
		BatchSize:       2,
		BatchSleepSecs:  0,
		TimeoutSeconds:  15,
		MaxErrors:       3,
		TailRows:        15,
		IntervalSeconds: 240,
	}
}

func newTestScanner(t *testing.T, ch *fakeChannels, sh *fakeSheets, q *fakeQueue, cfg config.ScannerConfig) *Scanner {
	t.Helper()
	s, err := New(Params{
		Channels: ch,
		Sheets:   sh,
		Queue:    q,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Config:   cfg,
	})
	require.NoError(t, err)
	return s
}

func TestScanEnqueuesOnlyReadyRows(t *testing.T) {
	notReady := readySheetRow(2, "pending-edit")
	notReady.Status = "editing"
	uploaded := readySheetRow(3, "already-up")
	uploaded.UploadMark = "2026-08-29 10:00"

	ch := &fakeChannels{list: []models.Channel{scannableChannel("UC1", "s1")}}
	sh := &fakeSheets{rows: map[string][]sheets.Row{
		"s1": {readySheetRow(1, "go"), notReady, uploaded},
	}}
	q := &fakeQueue{}

	s := newTestScanner(t, ch, sh, q, testConfig())
	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, q.entries, 1)
	assert.Equal(t, "UC1", q.entries[0].ChannelID)
	assert.Equal(t, "s1", q.entries[0].SpreadsheetID)
	assert.Equal(t, 1, q.entries[0].RowNumber)
	assert.Equal(t, "go", q.entries[0].Title)
	assert.Equal(t, "pt-BR", q.entries[0].Language)

	assert.Equal(t, 1, stats.Channels)
	assert.Equal(t, 3, stats.RowsRead)
	assert.Equal(t, 1, stats.Ready)
	assert.Equal(t, 1, stats.Enqueued)
}

func TestScanOnlyLooksAtTail(t *testing.T) {
	rows := make([]sheets.Row, 0, 30)
	for i := 1; i <= 30; i++ {
		rows = append(rows, readySheetRow(i, "r"))
	}
	ch := &fakeChannels{list: []models.Channel{scannableChannel("UC1", "s1")}}
	sh := &fakeSheets{rows: map[string][]sheets.Row{"s1": rows}}
	q := &fakeQueue{}

	cfg := testConfig()
	cfg.TailRows = 15
	s := newTestScanner(t, ch, sh, q, cfg)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, q.entries, 15)
	assert.Equal(t, 16, q.entries[0].RowNumber, "rows above the tail window are invisible")
}

func TestScanSkipsDuplicates(t *testing.T) {
	ch := &fakeChannels{list: []models.Channel{scannableChannel("UC1", "s1")}}
	sh := &fakeSheets{rows: map[string][]sheets.Row{
		"s1": {readySheetRow(1, "a"), readySheetRow(2, "b")},
	}}
	q := &fakeQueue{dupRows: map[int]bool{1: true}}

	s := newTestScanner(t, ch, sh, q, testConfig())
	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Enqueued)
	assert.Equal(t, 1, stats.Skipped)
}

func TestScanIsolatesChannelFailures(t *testing.T) {
	ch := &fakeChannels{list: []models.Channel{
		scannableChannel("UC1", "s1"),
		scannableChannel("UC2", "s2"),
		scannableChannel("UC3", "s3"),
	}}
	sh := &fakeSheets{
		rows: map[string][]sheets.Row{
			"s1": {readySheetRow(1, "a")},
			"s3": {readySheetRow(1, "c")},
		},
		errs: map[string]error{"s2": errors.New("quota exceeded")},
	}
	q := &fakeQueue{}

	s := newTestScanner(t, ch, sh, q, testConfig())
	stats, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Enqueued, "healthy channels keep going")
	assert.Equal(t, 1, stats.ChannelErrors)
}

func TestCycleBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ch := &fakeChannels{err: errors.New("db down")}
	s := newTestScanner(t, ch, &fakeSheets{}, &fakeQueue{}, testConfig())

	ctx := context.Background()
	require.NoError(t, s.cycle(ctx))
	require.NoError(t, s.cycle(ctx))
	err := s.cycle(ctx)
	require.Error(t, err, "third consecutive failure opens the breaker")
	assert.Contains(t, err.Error(), "breaker")
}

func TestCycleResetsStreakOnSuccess(t *testing.T) {
	ch := &fakeChannels{err: errors.New("db down")}
	s := newTestScanner(t, ch, &fakeSheets{rows: map[string][]sheets.Row{}}, &fakeQueue{}, testConfig())

	ctx := context.Background()
	require.NoError(t, s.cycle(ctx))
	require.NoError(t, s.cycle(ctx))

	// Recovery before the third failure closes the streak.
	ch.err = nil
	ch.list = []models.Channel{scannableChannel("UC1", "s1")}
	require.NoError(t, s.cycle(ctx))
	assert.Equal(t, 0, s.consecutiveFailures)

	ch.err = errors.New("db down again")
	require.NoError(t, s.cycle(ctx))
	assert.Equal(t, 1, s.consecutiveFailures)
}
