package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltmidia/ytops-backend/pkg/enums"
)

// DailyUpload is the working-set ledger row for "today" dashboards.
// The schema allows several rows per (channel, date); readers dedupe by
// (channel id, date, title).
type DailyUpload struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChannelID   string    `gorm:"type:text;not null;index:idx_daily_channel_date" json:"channel_id"`
	ChannelName string    `gorm:"type:text;not null" json:"channel_name"`
	// Date is the attempt day as an ISO date string (YYYY-MM-DD), UTC.
	Date           string             `gorm:"type:text;not null;index:idx_daily_channel_date" json:"date"`
	Status         enums.LedgerStatus `gorm:"type:text;not null" json:"status"`
	UploadDone     bool               `gorm:"not null;default:false" json:"upload_realizado"`
	VideoTitle     *string            `gorm:"type:text" json:"video_title,omitempty"`
	YoutubeVideoID *string            `gorm:"type:text" json:"youtube_video_id,omitempty"`
	VideoURL       *string            `gorm:"type:text" json:"video_url,omitempty"`
	// ProcessedAt is stored in UTC; the dashboard extracts HH:MM locally.
	ProcessedAt  time.Time `gorm:"not null" json:"processing_time"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	Attempt      int       `gorm:"not null;default:1" json:"attempt"`
}

func (DailyUpload) TableName() string {
	return "daily_uploads"
}
