package uploadqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
)

// TransitionAux carries the auxiliary fields a status transition may set.
type TransitionAux struct {
	StartedAt      *time.Time
	CompletedAt    *time.Time
	YoutubeVideoID *string
	ErrorMessage   *string
}

// Repository is the queue surface shared by scanner and worker. The
// queue table is the serialization point for work; the deployment runs
// a single worker instance, so claim-then-process needs no in-database
// leasing. Uniqueness of active rows is ultimately held by the partial
// unique index on (spreadsheet_id, row_number); the HasActive pre-check
// only short-circuits the common case.
type Repository interface {
	// Enqueue inserts the entry unless a non-terminal entry already
	// exists for (spreadsheet id, row number). Returns false when the
	// duplicate guard suppressed the insert.
	Enqueue(ctx context.Context, entry *models.UploadQueueEntry) (bool, error)
	HasActive(ctx context.Context, spreadsheetID string, rowNumber int) (bool, error)
	// ClaimBatch reads at most limit pending entries, oldest first.
	ClaimBatch(ctx context.Context, limit int) ([]models.UploadQueueEntry, error)
	// Transition moves the entry forward in its state machine. Illegal
	// transitions return a state-conflict error.
	Transition(ctx context.Context, id uuid.UUID, next enums.QueueStatus, aux TransitionAux) error
	Get(ctx context.Context, id uuid.UUID) (*models.UploadQueueEntry, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an upload queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Enqueue(ctx context.Context, entry *models.UploadQueueEntry) (bool, error) {
	active, err := r.HasActive(ctx, entry.SpreadsheetID, entry.RowNumber)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = enums.QueuePending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		// A concurrent enqueue from the other binary can win between the
		// pre-check and the insert; the unique index turns that into a
		// plain duplicate, not an error.
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repositoryImpl) HasActive(ctx context.Context, spreadsheetID string, rowNumber int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UploadQueueEntry{}).
		Where("spreadsheet_id = ? AND row_number = ? AND status IN ?",
			spreadsheetID, rowNumber, enums.ActiveQueueStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) ClaimBatch(ctx context.Context, limit int) ([]models.UploadQueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var entries []models.UploadQueueEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.QueuePending).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *repositoryImpl) Transition(ctx context.Context, id uuid.UUID, next enums.QueueStatus, aux TransitionAux) error {
	if !next.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid queue status")
	}

	entry, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !entry.Status.CanTransitionTo(next) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal queue transition").
			WithDetails(map[string]any{"from": entry.Status, "to": next})
	}

	updates := map[string]any{"status": next}
	if aux.StartedAt != nil {
		updates["started_at"] = aux.StartedAt.UTC()
	}
	if aux.CompletedAt != nil {
		updates["completed_at"] = aux.CompletedAt.UTC()
	}
	if aux.YoutubeVideoID != nil {
		updates["youtube_video_id"] = *aux.YoutubeVideoID
	}
	if aux.ErrorMessage != nil {
		updates["error_message"] = *aux.ErrorMessage
	}

	// Guard on the observed status so a racing transition loses cleanly.
	result := r.db.WithContext(ctx).
		Model(&models.UploadQueueEntry{}).
		Where("id = ? AND status = ?", id, entry.Status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "queue entry changed concurrently")
	}
	return nil
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.UploadQueueEntry, error) {
	var entry models.UploadQueueEntry
	err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "queue entry not found")
		}
		return nil, err
	}
	return &entry, nil
}
