package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voltmidia/ytops-backend/pkg/db"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
)

// DateFormat is the ISO day key used across both ledger tables.
const DateFormat = "2006-01-02"

// DateUTC formats an instant as the UTC day it belongs to.
func DateUTC(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// Attempt is the outcome of one pipeline invocation. Recording it
// produces exactly one daily row and one history row.
type Attempt struct {
	ChannelID      string
	ChannelName    string
	Date           string
	Status         enums.LedgerStatus
	UploadDone     bool
	VideoTitle     *string
	YoutubeVideoID *string
	VideoURL       *string
	ProcessedAt    time.Time
	ErrorMessage   *string
}

// Repository writes ledger pairs and serves the dashboard read queries.
// Rows are never updated in place; corrections are additional rows.
type Repository interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
	DailyRows(ctx context.Context, date string) ([]models.DailyUpload, error)
	DailyRowsForChannel(ctx context.Context, channelID, date string) ([]models.DailyUpload, error)
	HistoryForChannel(ctx context.Context, channelID string) ([]models.UploadHistory, error)
	HistorySince(ctx context.Context, sinceDate string) ([]models.UploadHistory, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) RecordAttempt(ctx context.Context, attempt Attempt) error {
	if attempt.ChannelID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "attempt channel id required")
	}
	if !attempt.Status.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger status")
	}
	if attempt.Date == "" {
		attempt.Date = DateUTC(attempt.ProcessedAt)
	}
	if attempt.ProcessedAt.IsZero() {
		attempt.ProcessedAt = time.Now().UTC()
	}

	// Concurrent attempts for the same channel and day can compute the
	// same number; the unique (channel_id, date, attempt) index rejects
	// the loser and the write is retried with a fresh number.
	var err error
	for try := 0; try < 3; try++ {
		err = r.recordOnce(ctx, attempt)
		if err == nil || !db.IsUniqueViolation(err, "") {
			return err
		}
	}
	return err
}

func (r *repositoryImpl) recordOnce(ctx context.Context, attempt Attempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxAttempt int
		if err := tx.Model(&models.DailyUpload{}).
			Where("channel_id = ? AND date = ?", attempt.ChannelID, attempt.Date).
			Select("COALESCE(MAX(attempt), 0)").
			Scan(&maxAttempt).Error; err != nil {
			return err
		}
		number := maxAttempt + 1

		daily := models.DailyUpload{
			ID:             uuid.New(),
			ChannelID:      attempt.ChannelID,
			ChannelName:    attempt.ChannelName,
			Date:           attempt.Date,
			Status:         attempt.Status,
			UploadDone:     attempt.UploadDone,
			VideoTitle:     attempt.VideoTitle,
			YoutubeVideoID: attempt.YoutubeVideoID,
			VideoURL:       attempt.VideoURL,
			ProcessedAt:    attempt.ProcessedAt.UTC(),
			ErrorMessage:   attempt.ErrorMessage,
			Attempt:        number,
		}
		if err := tx.Create(&daily).Error; err != nil {
			return err
		}

		history := models.UploadHistory{
			ID:             uuid.New(),
			ChannelID:      attempt.ChannelID,
			ChannelName:    attempt.ChannelName,
			Date:           attempt.Date,
			Status:         attempt.Status,
			UploadDone:     attempt.UploadDone,
			VideoTitle:     attempt.VideoTitle,
			YoutubeVideoID: attempt.YoutubeVideoID,
			VideoURL:       attempt.VideoURL,
			ProcessedAt:    attempt.ProcessedAt.UTC(),
			ErrorMessage:   attempt.ErrorMessage,
			Attempt:        number,
			CreatedAt:      time.Now().UTC(),
		}
		return tx.Create(&history).Error
	})
}

func (r *repositoryImpl) DailyRows(ctx context.Context, date string) ([]models.DailyUpload, error) {
	var rows []models.DailyUpload
	err := r.db.WithContext(ctx).
		Where("date = ?", date).
		Order("processed_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) DailyRowsForChannel(ctx context.Context, channelID, date string) ([]models.DailyUpload, error) {
	var rows []models.DailyUpload
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND date = ?", channelID, date).
		Order("processed_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) HistoryForChannel(ctx context.Context, channelID string) ([]models.UploadHistory, error) {
	var rows []models.UploadHistory
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("date DESC, processed_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) HistorySince(ctx context.Context, sinceDate string) ([]models.UploadHistory, error) {
	var rows []models.UploadHistory
	err := r.db.WithContext(ctx).
		Where("date >= ?", sinceDate).
		Order("date DESC, processed_at DESC").
		Find(&rows).Error
	return rows, err
}
