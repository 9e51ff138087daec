package credentials

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voltmidia/ytops-backend/pkg/db/models"
)

// ErrNotFound is returned by repository lookups when no row exists; the
// manager translates it into its resolution-order semantics.
var ErrNotFound = errors.New("credentials: not found")

// Repository persists OAuth client pairs and token rows.
type Repository interface {
	GetChannelCredentials(ctx context.Context, channelID string) (*models.ChannelCredentials, error)
	GetProxyCredentials(ctx context.Context, proxyTag string) (*models.ProxyCredentials, error)
	GetToken(ctx context.Context, channelID string) (*models.OAuthToken, error)
	// UpdateAccessToken persists the refreshed access token and its new
	// absolute expiry. The refresh token is never rewritten here.
	UpdateAccessToken(ctx context.Context, channelID, accessToken string, expiresAt time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a credentials repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) GetChannelCredentials(ctx context.Context, channelID string) (*models.ChannelCredentials, error) {
	var creds models.ChannelCredentials
	err := r.db.WithContext(ctx).First(&creds, "channel_id = ?", channelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &creds, nil
}

func (r *repositoryImpl) GetProxyCredentials(ctx context.Context, proxyTag string) (*models.ProxyCredentials, error) {
	var creds models.ProxyCredentials
	err := r.db.WithContext(ctx).First(&creds, "proxy_tag = ?", proxyTag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &creds, nil
}

func (r *repositoryImpl) GetToken(ctx context.Context, channelID string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	err := r.db.WithContext(ctx).First(&token, "channel_id = ?", channelID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *repositoryImpl) UpdateAccessToken(ctx context.Context, channelID, accessToken string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OAuthToken{}).
		Where("channel_id = ?", channelID).
		Updates(map[string]any{
			"access_token": accessToken,
			"expires_at":   expiresAt.UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
}
