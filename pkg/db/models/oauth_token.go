package models

import "time"

// OAuthToken is the per-channel token row. Only a successful refresh
// mutates it; failed refreshes leave the row untouched.
type OAuthToken struct {
	ChannelID    string    `gorm:"type:text;primaryKey"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text;not null"`
	// ExpiresAt is the absolute access-token expiry in UTC.
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
