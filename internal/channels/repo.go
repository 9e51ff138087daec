package channels

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/voltmidia/ytops-backend/pkg/db/models"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
)

// Repository exposes read access to the channels table. Channels are
// written by the onboarding tooling; this subsystem only reads them.
type Repository interface {
	Get(ctx context.Context, channelID string) (*models.Channel, error)
	// ListScannable returns active channels that have a production
	// spreadsheet attached, ordered by name for stable batch walks.
	ListScannable(ctx context.Context) ([]models.Channel, error)
	ListActive(ctx context.Context) ([]models.Channel, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a channels repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, channelID string) (*models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).First(&channel, "id = ?", channelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "channel not found")
		}
		return nil, err
	}
	return &channel, nil
}

func (r *repositoryImpl) ListScannable(ctx context.Context) ([]models.Channel, error) {
	var list []models.Channel
	err := r.db.WithContext(ctx).
		Where("active = ? AND spreadsheet_id IS NOT NULL AND spreadsheet_id <> ''", true).
		Order("name ASC").
		Find(&list).Error
	return list, err
}

func (r *repositoryImpl) ListActive(ctx context.Context) ([]models.Channel, error) {
	var list []models.Channel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&list).Error
	return list, err
}
