package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Video downloads take a while; the read timeout covers the whole body.
const downloadTimeout = 300 * time.Second

// Downloader fetches video assets from Google Drive into scratch files.
type Downloader struct {
	client  *http.Client
	baseURL string
}

// Option tweaks a Downloader; used by tests to point at a local server.
type Option func(*Downloader)

// WithBaseURL overrides the Drive download endpoint.
func WithBaseURL(base string) Option {
	return func(d *Downloader) {
		d.baseURL = base
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		d.client = client
	}
}

// NewDownloader builds a Drive downloader with redirect-following and a
// long read timeout.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client:  &http.Client{Timeout: downloadTimeout},
		baseURL: DownloadEndpoint,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download resolves the Drive URL and streams the asset into
// destDir/{ID}.mp4. The file-id naming makes retries of the same video
// overwrite in place and keeps distinct videos collision-free.
func (d *Downloader) Download(ctx context.Context, videoURL, destDir string) (string, error) {
	fileID, err := ExtractFileID(videoURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}

	endpoint := fmt.Sprintf("%s?export=download&id=%s", d.baseURL, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading drive file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drive download for %s returned status %d", fileID, resp.StatusCode)
	}

	dest := filepath.Join(destDir, fileID+".mp4")
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("writing scratch file for %s: %w", fileID, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}
