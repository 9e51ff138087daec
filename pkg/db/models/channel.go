package models

import "time"

// Channel is a YouTube channel under management. The primary key is the
// channel id YouTube assigned, so rows join 1:1 with the credential and
// token tables without surrogate ids.
type Channel struct {
	ID                string  `gorm:"type:text;primaryKey" json:"id"`
	Name              string  `gorm:"type:text;not null" json:"name"`
	Subniche          string  `gorm:"type:text;not null;default:''" json:"subniche"`
	Language          string  `gorm:"type:text;not null;default:'en'" json:"language"`
	DefaultPlaylistID *string `gorm:"type:text" json:"default_playlist_id,omitempty"`
	SpreadsheetID     *string `gorm:"type:text" json:"spreadsheet_id,omitempty"`
	// ProxyTag keys the deprecated shared credential fallback.
	ProxyTag   *string   `gorm:"type:text" json:"proxy_tag,omitempty"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	AutoUpload bool      `gorm:"not null;default:false" json:"auto_upload"`
	Monetized  bool      `gorm:"not null;default:false" json:"monetized"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
