package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadWritesFileNamedByID(t *testing.T) {
	payload := []byte("fake video bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "download", r.URL.Query().Get("export"))
		assert.Equal(t, "vid42", r.URL.Query().Get("id"))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewDownloader(WithBaseURL(server.URL))

	path, err := d.Download(context.Background(),
		"https://drive.google.com/file/d/vid42/view", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "vid42.mp4"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadFollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("redirected"))
	}))
	defer final.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer server.Close()

	d := NewDownloader(WithBaseURL(server.URL))
	path, err := d.Download(context.Background(),
		"https://drive.google.com/open?id=redir1", t.TempDir())
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redirected", string(got))
}

func TestDownloadNonOKStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := NewDownloader(WithBaseURL(server.URL))

	_, err := d.Download(context.Background(),
		"https://drive.google.com/open?id=missing", dir)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "missing.mp4"))
}

func TestDownloadRejectsBadURL(t *testing.T) {
	d := NewDownloader()
	_, err := d.Download(context.Background(), "https://example.com/nope", t.TempDir())
	assert.Error(t, err)
}
