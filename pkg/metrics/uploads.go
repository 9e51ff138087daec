package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UploadMetrics records scanner cycles and worker upload outcomes.
type UploadMetrics struct {
	scanDuration *prometheus.HistogramVec
	scanRows     *prometheus.CounterVec
	tickDuration prometheus.Histogram
	uploads      *prometheus.CounterVec
}

// NewUploadMetrics registers the pipeline metrics on the provided registerer.
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	if reg == nil {
		return &UploadMetrics{}
	}
	scanDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sheet_scan_duration_seconds",
		Help:    "Duration of full sheet scan cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	scanRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_scan_rows_total",
		Help: "Spreadsheet rows seen by the scanner, by disposition.",
	}, []string{"disposition"})
	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upload_worker_tick_duration_seconds",
		Help:    "Duration of upload worker ticks in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "video_uploads_total",
		Help: "Video upload attempts, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(scanDuration, scanRows, tickDuration, uploads)
	return &UploadMetrics{
		scanDuration: scanDuration,
		scanRows:     scanRows,
		tickDuration: tickDuration,
		uploads:      uploads,
	}
}

// ObserveScan records one full scan cycle.
func (m *UploadMetrics) ObserveScan(result string, duration time.Duration) {
	if m == nil || m.scanDuration == nil {
		return
	}
	m.scanDuration.WithLabelValues(normalizeLabel(result)).Observe(duration.Seconds())
}

// AddScanRows counts rows by disposition (read, found, added, skipped, error).
func (m *UploadMetrics) AddScanRows(disposition string, n int) {
	if m == nil || m.scanRows == nil || n <= 0 {
		return
	}
	m.scanRows.WithLabelValues(normalizeLabel(disposition)).Add(float64(n))
}

// ObserveTick records one worker tick.
func (m *UploadMetrics) ObserveTick(duration time.Duration) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
}

// IncUpload counts one upload attempt by outcome (sucesso, sem_video, erro).
func (m *UploadMetrics) IncUpload(outcome string) {
	if m == nil || m.uploads == nil {
		return
	}
	m.uploads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
