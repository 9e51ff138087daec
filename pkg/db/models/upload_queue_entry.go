package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmidia/ytops-backend/pkg/enums"
)

// UploadQueueEntry is the durable hand-off between the sheet scanner and
// the upload worker. (SpreadsheetID, RowNumber) is effectively unique
// across the non-terminal states.
type UploadQueueEntry struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	ChannelID     string            `gorm:"type:text;not null;index"`
	SpreadsheetID string            `gorm:"type:text;not null;index:idx_queue_sheet_row"`
	RowNumber     int               `gorm:"not null;index:idx_queue_sheet_row"`
	VideoURL      string            `gorm:"type:text;not null"`
	Title         string            `gorm:"type:text;not null"`
	Description   string            `gorm:"type:text;not null;default:''"`
	Subniche      string            `gorm:"type:text;not null;default:''"`
	Language      string            `gorm:"type:text;not null;default:'en'"`
	Status        enums.QueueStatus `gorm:"type:text;not null;default:'pending';index"`

	YoutubeVideoID *string `gorm:"type:text"`
	ErrorMessage   *string `gorm:"type:text"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (UploadQueueEntry) TableName() string {
	return "upload_queue"
}
