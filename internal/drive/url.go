package drive

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DownloadEndpoint is Drive's direct-download entry point.
const DownloadEndpoint = "https://drive.google.com/uc"

var filePathPattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)

// ExtractFileID pulls the Drive file id out of either accepted URL
// shape: /file/d/{ID}/... or ...?id={ID}.
func ExtractFileID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("empty drive url")
	}

	if match := filePathPattern.FindStringSubmatch(trimmed); len(match) == 2 {
		return match[1], nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parsing drive url %q: %w", rawURL, err)
	}
	if id := parsed.Query().Get("id"); id != "" {
		return id, nil
	}

	return "", fmt.Errorf("unrecognized drive url format: %q", rawURL)
}

// DownloadURL builds the direct-download URL for a file id.
func DownloadURL(fileID string) string {
	return fmt.Sprintf("%s?export=download&id=%s", DownloadEndpoint, url.QueryEscape(fileID))
}
