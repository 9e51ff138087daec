package uploadqueue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.UploadQueueEntry{}))
	// Mirror the production partial unique index so tests exercise the
	// same duplicate rejection the migration installs.
	require.NoError(t, conn.Exec(
		`CREATE UNIQUE INDEX idx_queue_sheet_row_active ON upload_queue (spreadsheet_id, row_number)
		 WHERE status IN ('pending', 'downloading', 'uploading')`).Error)
	return conn
}

func testEntry(row int) *models.UploadQueueEntry {
	return &models.UploadQueueEntry{
		ChannelID:     "UC123",
		SpreadsheetID: "sheet-1",
		RowNumber:     row,
		VideoURL:      "https://drive.google.com/file/d/abc/view",
		Title:         "video title",
	}
}

func TestEnqueueSuppressesActiveDuplicates(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	inserted, err := repo.Enqueue(ctx, testEntry(7))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Enqueue(ctx, testEntry(7))
	require.NoError(t, err)
	assert.False(t, inserted, "active duplicate must be suppressed")

	// A different row of the same sheet is fine.
	inserted, err = repo.Enqueue(ctx, testEntry(8))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestEnqueueConcurrentSameRowInsertsExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Scanner and force-upload race from separate processes in
	// production; whichever loses must see a clean duplicate, never an
	// error or a second active row.
	const racers = 8
	var wg sync.WaitGroup
	var insertedCount atomic.Int32
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := repo.Enqueue(ctx, testEntry(42))
			if err != nil {
				errs <- err
				return
			}
			if inserted {
				insertedCount.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), insertedCount.Load())

	var active int64
	require.NoError(t, db.Model(&models.UploadQueueEntry{}).
		Where("spreadsheet_id = ? AND row_number = ?", "sheet-1", 42).
		Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestEnqueueMapsIndexViolationToDuplicate(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	// Plant an active row behind the repository's back, then force the
	// insert path to collide with the unique index.
	planted := testEntry(9)
	planted.ID = uuid.New()
	planted.Status = enums.QueuePending
	planted.CreatedAt = time.Now().UTC()
	require.NoError(t, db.Create(planted).Error)

	dupe := testEntry(9)
	dupe.ID = uuid.New()
	dupe.Status = enums.QueuePending
	dupe.CreatedAt = time.Now().UTC()
	err := db.Create(dupe).Error
	require.Error(t, err, "index must reject the second active row")
	assert.True(t, pkgdb.IsUniqueViolation(err, ""),
		"driver violation must be recognized so Enqueue can map it to a duplicate")

	inserted, err := repo.Enqueue(ctx, testEntry(9))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestEnqueueAllowsReinsertAfterTerminalState(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	first := testEntry(3)
	inserted, err := repo.Enqueue(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)

	require.NoError(t, repo.Transition(ctx, first.ID, enums.QueueFailed, TransitionAux{}))

	inserted, err = repo.Enqueue(ctx, testEntry(3))
	require.NoError(t, err)
	assert.True(t, inserted, "terminal entries release the row for retry")
}

func TestClaimBatchOldestFirst(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := testEntry(i + 1)
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		inserted, err := repo.Enqueue(ctx, entry)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	claimed, err := repo.ClaimBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, 1, claimed[0].RowNumber)
	assert.Equal(t, 2, claimed[1].RowNumber)

	claimed, err = repo.ClaimBatch(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimBatchSkipsNonPending(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	entry := testEntry(1)
	_, err := repo.Enqueue(ctx, entry)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueDownloading, TransitionAux{}))

	claimed, err := repo.ClaimBatch(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestTransitionForwardOnly(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	entry := testEntry(1)
	_, err := repo.Enqueue(ctx, entry)
	require.NoError(t, err)

	// Skipping a state is rejected.
	err = repo.Transition(ctx, entry.ID, enums.QueueUploading, TransitionAux{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	startedAt := time.Now().UTC()
	require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueDownloading, TransitionAux{
		StartedAt: &startedAt,
	}))
	require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueUploading, TransitionAux{}))

	videoID := "yt-video-1"
	completedAt := time.Now().UTC()
	require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueCompleted, TransitionAux{
		CompletedAt:    &completedAt,
		YoutubeVideoID: &videoID,
	}))

	final, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.QueueCompleted, final.Status)
	require.NotNil(t, final.YoutubeVideoID)
	assert.Equal(t, videoID, *final.YoutubeVideoID)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)

	// Terminal states are frozen.
	err = repo.Transition(ctx, entry.ID, enums.QueueFailed, TransitionAux{})
	require.Error(t, err)
}

func TestTransitionFailedFromAnyActiveState(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	for i, intermediate := range []enums.QueueStatus{enums.QueuePending, enums.QueueDownloading, enums.QueueUploading} {
		entry := testEntry(i + 1)
		_, err := repo.Enqueue(ctx, entry)
		require.NoError(t, err)

		if intermediate != enums.QueuePending {
			require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueDownloading, TransitionAux{}))
		}
		if intermediate == enums.QueueUploading {
			require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueUploading, TransitionAux{}))
		}

		message := "boom"
		require.NoError(t, repo.Transition(ctx, entry.ID, enums.QueueFailed, TransitionAux{
			ErrorMessage: &message,
		}))

		final, err := repo.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.QueueFailed, final.Status)
		require.NotNil(t, final.ErrorMessage)
		assert.Equal(t, "boom", *final.ErrorMessage)
	}
}

func TestGetUnknownEntry(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
