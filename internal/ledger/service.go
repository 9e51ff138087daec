package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/voltmidia/ytops-backend/internal/channels"
	"github.com/voltmidia/ytops-backend/pkg/db/models"
	"github.com/voltmidia/ytops-backend/pkg/enums"
)

// Entry is the dashboard-facing view of one attempt, shared by the
// today view and the merged history views.
type Entry struct {
	ChannelID      string             `json:"channel_id"`
	ChannelName    string             `json:"channel_name"`
	Date           string             `json:"date"`
	Status         enums.LedgerStatus `json:"status"`
	UploadDone     bool               `json:"upload_realizado"`
	VideoTitle     *string            `json:"video_title,omitempty"`
	YoutubeVideoID *string            `json:"youtube_video_id,omitempty"`
	VideoURL       *string            `json:"video_url,omitempty"`
	// UploadTime is the HH:MM presentation of ProcessedAt in the
	// configured local timezone. Storage stays UTC.
	UploadTime   string  `json:"upload_time"`
	ErrorMessage *string `json:"error_message,omitempty"`
	Attempt      int     `json:"attempt"`
}

// ChannelStatus is one channel's line in the today view.
type ChannelStatus struct {
	ChannelID  string             `json:"channel_id"`
	Name       string             `json:"name"`
	Status     enums.LedgerStatus `json:"status"`
	VideoTitle *string            `json:"video_title,omitempty"`
	UploadTime string             `json:"upload_time,omitempty"`
	Monetized  bool               `json:"monetized"`
	Language   string             `json:"language"`
}

// SubnicheGroup clusters today's channel statuses for the dashboard.
type SubnicheGroup struct {
	Subniche string          `json:"subniche"`
	Channels []ChannelStatus `json:"channels"`
}

// DaySummary aggregates one day for the 30-day view.
type DaySummary struct {
	Date    string  `json:"date"`
	Success int     `json:"sucesso"`
	NoVideo int     `json:"sem_video"`
	Errors  int     `json:"erro"`
	Uploads []Entry `json:"uploads"`
}

// Service shapes ledger data for the HTTP surface.
type Service interface {
	StatusToday(ctx context.Context) ([]SubnicheGroup, error)
	ChannelHistory(ctx context.Context, channelID string) ([]Entry, error)
	FullHistory(ctx context.Context) ([]DaySummary, error)
}

type service struct {
	repo     Repository
	channels channels.Repository
	loc      *time.Location
	now      func() time.Time
}

// NewService wires the ledger read service.
func NewService(repo Repository, channelRepo channels.Repository, loc *time.Location) (Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository is required")
	}
	if channelRepo == nil {
		return nil, errors.New("channels repository is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     repo,
		channels: channelRepo,
		loc:      loc,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) StatusToday(ctx context.Context) ([]SubnicheGroup, error) {
	today := DateUTC(s.now())

	active, err := s.channels.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.DailyRows(ctx, today)
	if err != nil {
		return nil, err
	}

	// Latest attempt wins per channel for the today badge.
	latest := map[string]models.DailyUpload{}
	for _, row := range rows {
		if cur, ok := latest[row.ChannelID]; !ok || row.ProcessedAt.After(cur.ProcessedAt) {
			latest[row.ChannelID] = row
		}
	}

	grouped := map[string][]ChannelStatus{}
	for _, channel := range active {
		status := ChannelStatus{
			ChannelID: channel.ID,
			Name:      channel.Name,
			Status:    enums.LedgerPending,
			Monetized: channel.Monetized,
			Language:  channel.Language,
		}
		if row, ok := latest[channel.ID]; ok {
			status.Status = row.Status
			status.VideoTitle = row.VideoTitle
			status.UploadTime = s.localClock(row.ProcessedAt)
		}
		grouped[channel.Subniche] = append(grouped[channel.Subniche], status)
	}

	groups := make([]SubnicheGroup, 0, len(grouped))
	for subniche, list := range grouped {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
		groups = append(groups, SubnicheGroup{Subniche: subniche, Channels: list})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Subniche < groups[j].Subniche })
	return groups, nil
}

func (s *service) ChannelHistory(ctx context.Context, channelID string) ([]Entry, error) {
	if _, err := s.channels.Get(ctx, channelID); err != nil {
		return nil, err
	}

	today := DateUTC(s.now())
	history, err := s.repo.HistoryForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.DailyRowsForChannel(ctx, channelID, today)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(history)+len(daily))
	for _, row := range daily {
		entries = append(entries, s.entryFromDaily(row))
	}
	for _, row := range history {
		entries = append(entries, s.entryFromHistory(row))
	}

	merged := dedupeEntries(entries)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Date != merged[j].Date {
			return merged[i].Date > merged[j].Date
		}
		return merged[i].UploadTime > merged[j].UploadTime
	})
	return merged, nil
}

func (s *service) FullHistory(ctx context.Context) ([]DaySummary, error) {
	now := s.now()
	since := DateUTC(now.AddDate(0, 0, -29))
	today := DateUTC(now)

	history, err := s.repo.HistorySince(ctx, since)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.DailyRows(ctx, today)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(history)+len(daily))
	for _, row := range daily {
		entries = append(entries, s.entryFromDaily(row))
	}
	for _, row := range history {
		entries = append(entries, s.entryFromHistory(row))
	}
	merged := dedupeEntries(entries)

	byDate := map[string]*DaySummary{}
	for _, entry := range merged {
		summary, ok := byDate[entry.Date]
		if !ok {
			summary = &DaySummary{Date: entry.Date}
			byDate[entry.Date] = summary
		}
		switch entry.Status {
		case enums.LedgerSuccess:
			summary.Success++
		case enums.LedgerNoVideo:
			summary.NoVideo++
		case enums.LedgerError:
			summary.Errors++
		}
		summary.Uploads = append(summary.Uploads, entry)
	}

	days := make([]DaySummary, 0, len(byDate))
	for _, summary := range byDate {
		days = append(days, *summary)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date > days[j].Date })
	return days, nil
}

func (s *service) entryFromDaily(row models.DailyUpload) Entry {
	return Entry{
		ChannelID:      row.ChannelID,
		ChannelName:    row.ChannelName,
		Date:           row.Date,
		Status:         row.Status,
		UploadDone:     row.UploadDone,
		VideoTitle:     row.VideoTitle,
		YoutubeVideoID: row.YoutubeVideoID,
		VideoURL:       row.VideoURL,
		UploadTime:     s.localClock(row.ProcessedAt),
		ErrorMessage:   row.ErrorMessage,
		Attempt:        row.Attempt,
	}
}

func (s *service) entryFromHistory(row models.UploadHistory) Entry {
	return Entry{
		ChannelID:      row.ChannelID,
		ChannelName:    row.ChannelName,
		Date:           row.Date,
		Status:         row.Status,
		UploadDone:     row.UploadDone,
		VideoTitle:     row.VideoTitle,
		YoutubeVideoID: row.YoutubeVideoID,
		VideoURL:       row.VideoURL,
		UploadTime:     s.localClock(row.ProcessedAt),
		ErrorMessage:   row.ErrorMessage,
		Attempt:        row.Attempt,
	}
}

func (s *service) localClock(t time.Time) string {
	return t.In(s.loc).Format("15:04")
}

// dedupeEntries merges daily and history rows by (channel, date, title),
// keeping the first occurrence; callers order inputs so the freshest
// source comes first.
func dedupeEntries(entries []Entry) []Entry {
	type key struct {
		channel string
		date    string
		title   string
	}
	seen := map[key]bool{}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		title := ""
		if entry.VideoTitle != nil {
			title = *entry.VideoTitle
		}
		k := key{channel: entry.ChannelID, date: entry.Date, title: title}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, entry)
	}
	return out
}
