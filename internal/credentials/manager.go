package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/voltmidia/ytops-backend/internal/channels"
	pkgerrors "github.com/voltmidia/ytops-backend/pkg/errors"
	"github.com/voltmidia/ytops-backend/pkg/logger"
)

// Scopes is the full scope set carried by channel tokens. The analytics
// scope is consumed elsewhere but must ride on the same token.
var Scopes = []string{
	"https://www.googleapis.com/auth/youtube.upload",
	"https://www.googleapis.com/auth/youtube",
	"https://www.googleapis.com/auth/youtube.force-ssl",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
}

// Fallback expiry when the token endpoint omits expires_in.
const defaultAccessTokenTTL = 3600 * time.Second

// Credentials is the materialized, ready-to-use identity for one
// channel. The access token is guaranteed non-expired at the moment
// Materialize returns.
type Credentials struct {
	ChannelID    string
	ClientID     string
	ClientSecret string
	Token        *oauth2.Token

	tokenURL string
}

// Config builds the oauth2 client configuration for this channel.
func (c *Credentials) Config() *oauth2.Config {
	endpoint := google.Endpoint
	if c.tokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: c.tokenURL}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       Scopes,
	}
}

// TokenSource returns a static source over the materialized token.
// Callers are expected to re-materialize rather than rely on the
// oauth2 package's implicit refresh, so persistence stays in one place.
func (c *Credentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.StaticTokenSource(c.Token)
}

// ManagerParams configure the OAuth manager.
type ManagerParams struct {
	Repo     Repository
	Channels channels.Repository
	Logger   *logger.Logger
	// TokenURL overrides Google's token endpoint; tests point it at a
	// local server.
	TokenURL string
	Now      func() time.Time
}

// Manager materializes valid credentials per channel. It is stateless
// beyond the token rows, except for the per-channel mutexes that
// serialize concurrent refreshes.
type Manager struct {
	repo     Repository
	channels channels.Repository
	logg     *logger.Logger
	tokenURL string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wires the OAuth manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Repo == nil {
		return nil, errors.New("credentials repository is required")
	}
	if params.Channels == nil {
		return nil, errors.New("channels repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		repo:     params.Repo,
		channels: params.Channels,
		logg:     params.Logger,
		tokenURL: params.TokenURL,
		now:      now,
		locks:    map[string]*sync.Mutex{},
	}, nil
}

// Materialize returns credentials for the channel whose access token is
// valid at the moment of return, refreshing and persisting on the way
// when needed. Resolution order: channel-isolated credentials first,
// then the deprecated proxy-tag fallback.
func (m *Manager) Materialize(ctx context.Context, channelID string) (*Credentials, error) {
	lock := m.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	ctx = m.logg.WithChannelID(ctx, channelID)

	clientID, clientSecret, err := m.resolveClient(ctx, channelID)
	if err != nil {
		return nil, err
	}

	row, err := m.repo.GetToken(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "oauth token missing for channel")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading oauth token")
	}
	if row.RefreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "oauth token has no refresh token")
	}

	creds := &Credentials{
		ChannelID:    channelID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Token: &oauth2.Token{
			AccessToken:  row.AccessToken,
			RefreshToken: row.RefreshToken,
			Expiry:       row.ExpiresAt,
			TokenType:    "Bearer",
		},
		tokenURL: m.tokenURL,
	}

	// Expiry is compared against wall-clock UTC with no grace window.
	if row.ExpiresAt.After(m.now()) {
		return creds, nil
	}

	return m.refresh(ctx, creds)
}

func (m *Manager) resolveClient(ctx context.Context, channelID string) (string, string, error) {
	own, err := m.repo.GetChannelCredentials(ctx, channelID)
	if err == nil {
		return own.ClientID, own.ClientSecret, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading channel credentials")
	}

	channel, err := m.channels.Get(ctx, channelID)
	if err != nil {
		return "", "", err
	}
	if channel.ProxyTag == nil || *channel.ProxyTag == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeNotFound, "no credentials configured for channel")
	}

	proxy, err := m.repo.GetProxyCredentials(ctx, *channel.ProxyTag)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", pkgerrors.New(pkgerrors.CodeNotFound, "no credentials configured for channel")
		}
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading proxy credentials")
	}

	m.logg.Warn(m.logg.WithField(ctx, "proxy_tag", *channel.ProxyTag),
		"using deprecated shared proxy credentials; migrate this channel to isolated credentials")
	return proxy.ClientID, proxy.ClientSecret, nil
}

func (m *Manager) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	conf := creds.Config()

	// Handing the source only the refresh token forces an immediate
	// refresh round-trip instead of reusing the stale access token.
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.Token.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		// Token row stays untouched on refresh failure.
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "oauth token refresh failed")
	}

	expiry := fresh.Expiry.UTC()
	if fresh.Expiry.IsZero() {
		expiry = m.now().Add(defaultAccessTokenTTL)
	}

	if err := m.repo.UpdateAccessToken(ctx, creds.ChannelID, fresh.AccessToken, expiry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting refreshed token")
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = creds.Token.RefreshToken
	}
	creds.Token = &oauth2.Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
		TokenType:    "Bearer",
	}

	m.logg.Info(m.logg.WithField(ctx, "expires_at", expiry), "oauth access token refreshed")
	return creds, nil
}

func (m *Manager) channelLock(channelID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[channelID] = lock
	}
	return lock
}
