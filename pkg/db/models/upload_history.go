package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmidia/ytops-backend/pkg/enums"
)

// UploadHistory is the append-only twin of DailyUpload: one row per
// attempt, never updated in place.
type UploadHistory struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ChannelID      string             `gorm:"type:text;not null;index:idx_history_channel_date" json:"channel_id"`
	ChannelName    string             `gorm:"type:text;not null" json:"channel_name"`
	Date           string             `gorm:"type:text;not null;index:idx_history_channel_date" json:"date"`
	Status         enums.LedgerStatus `gorm:"type:text;not null" json:"status"`
	UploadDone     bool               `gorm:"not null;default:false" json:"upload_realizado"`
	VideoTitle     *string            `gorm:"type:text" json:"video_title,omitempty"`
	YoutubeVideoID *string            `gorm:"type:text" json:"youtube_video_id,omitempty"`
	VideoURL       *string            `gorm:"type:text" json:"video_url,omitempty"`
	ProcessedAt    time.Time          `gorm:"not null" json:"processing_time"`
	ErrorMessage   *string            `gorm:"type:text" json:"error_message,omitempty"`
	Attempt        int                `gorm:"not null;default:1" json:"attempt"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (UploadHistory) TableName() string {
	return "upload_history"
}
