package models

import "time"

// ChannelCredentials holds the OAuth client pair owned by exactly one
// channel. A revoked client must never take more than one channel down,
// which is why there is no sharing at this level.
type ChannelCredentials struct {
	ChannelID    string    `gorm:"type:text;primaryKey"`
	ClientID     string    `gorm:"type:text;not null"`
	ClientSecret string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ChannelCredentials) TableName() string {
	return "channel_credentials"
}

// ProxyCredentials is the legacy shared credential set keyed by proxy
// tag. Read-only fallback; every use logs a deprecation warning.
type ProxyCredentials struct {
	ProxyTag     string    `gorm:"type:text;primaryKey"`
	ClientID     string    `gorm:"type:text;not null"`
	ClientSecret string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProxyCredentials) TableName() string {
	return "proxy_credentials"
}
