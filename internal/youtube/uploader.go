package youtube

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/voltmidia/ytops-backend/pkg/logger"
)

const (
	// Entertainment category, applied to every upload.
	categoryID = "24"

	uploadChunkSize = 5 * 1024 * 1024
)

// UploadParams describe one video to publish.
type UploadParams struct {
	FilePath    string
	Title       string
	Description string
	// Language feeds both default language fields on the snippet.
	Language string
	// PlaylistID, when set, adds the published video to the playlist
	// after the upload succeeds.
	PlaylistID string
}

// Uploader publishes videos to a channel identified by its token source.
type Uploader interface {
	Upload(ctx context.Context, source oauth2.TokenSource, params UploadParams) (string, error)
	AddToPlaylist(ctx context.Context, source oauth2.TokenSource, playlistID, videoID string) error
}

// Client is the production YouTube Data API uploader.
type Client struct {
	logg *logger.Logger
}

// NewClient wires the uploader.
func NewClient(logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Client{logg: logg}, nil
}

// Upload publishes the file as a private video and returns the new
// video id. Every upload is private, never made-for-kids, and flagged
// as synthetic media.
func (c *Client) Upload(ctx context.Context, source oauth2.TokenSource, params UploadParams) (string, error) {
	if params.FilePath == "" {
		return "", errors.New("upload file path is required")
	}
	if params.Title == "" {
		return "", errors.New("upload title is required")
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return "", fmt.Errorf("creating youtube service: %w", err)
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return "", fmt.Errorf("opening video file: %w", err)
	}
	defer file.Close()

	call := svc.Videos.Insert([]string{"snippet", "status"}, newUploadVideo(params)).
		Media(file, googleapi.ChunkSize(uploadChunkSize)).
		ProgressUpdater(func(current, total int64) {
			c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
				"bytes_sent":  current,
				"bytes_total": total,
			}), "upload progress")
		})

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("inserting video: %w", err)
	}
	return resp.Id, nil
}

// newUploadVideo builds the insert body. Title and description go out
// exactly as stored; the status block pins every upload to private,
// not made-for-kids, and disclosed synthetic media. The two boolean
// fields ride ForceSendFields so their false/true values survive the
// API client's empty-value pruning.
func newUploadVideo(params UploadParams) *youtube.Video {
	madeForKids := false
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                params.Title,
			Description:          params.Description,
			CategoryId:           categoryID,
			DefaultLanguage:      params.Language,
			DefaultAudioLanguage: params.Language,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           "private",
			SelfDeclaredMadeForKids: madeForKids,
			ContainsSyntheticMedia:  true,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids", "ContainsSyntheticMedia"},
		},
	}
}

func newPlaylistItem(playlistID, videoID string) *youtube.PlaylistItem {
	return &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}
}

// AddToPlaylist appends a published video to the channel's playlist.
func (c *Client) AddToPlaylist(ctx context.Context, source oauth2.TokenSource, playlistID, videoID string) error {
	svc, err := youtube.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return fmt.Errorf("creating youtube service: %w", err)
	}

	item := newPlaylistItem(playlistID, videoID)
	if _, err := svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		return fmt.Errorf("adding video %s to playlist %s: %w", videoID, playlistID, err)
	}
	return nil
}
