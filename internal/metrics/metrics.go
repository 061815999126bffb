// Package metrics records run statistics as Prometheus metrics.
//
// A Recorder registers its collectors on its own registry, never the global
// default, so tests and repeated runs in one process do not collide. At the
// end of a run the registry can be dumped in the node_exporter textfile
// format with WriteTextfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "streetgrab"

// Recorder holds the collectors for one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	reg *prometheus.Registry

	DownloadsTotal   *prometheus.CounterVec
	DownloadRetries  prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
	MetadataPages    *prometheus.CounterVec
	MetadataRecords  prometheus.Counter
	FilterDecisions  *prometheus.CounterVec
	GeocodeRequests  *prometheus.CounterVec
	RunDuration      prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		reg: reg,

		DownloadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "items_total",
			Help:      "Images processed by final status",
		}, []string{"status"}),

		DownloadRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "retries_total",
			Help:      "Back-off retries issued for image downloads",
		}),

		DownloadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Image bytes written to disk",
		}),

		DownloadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "download",
			Name:      "duration_seconds",
			Help:      "Per-image download time including retries",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		MetadataPages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "pages_total",
			Help:      "Metadata pages fetched by result",
		}, []string{"result"}),

		MetadataRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "records_total",
			Help:      "Unique image records returned by the provider",
		}),

		FilterDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "decisions_total",
			Help:      "Panorama classifier decisions",
		}, []string{"decision"}),

		GeocodeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geocode",
			Name:      "requests_total",
			Help:      "Geocoder lookups by source",
		}, []string{"source"}),

		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Download records one finished item.
func (r *Recorder) Download(status string, bytes int, d time.Duration) {
	if r == nil {
		return
	}
	r.DownloadsTotal.WithLabelValues(status).Inc()
	if bytes > 0 {
		r.DownloadBytes.Add(float64(bytes))
	}
	r.DownloadDuration.Observe(d.Seconds())
}

// Retry records one back-off.
func (r *Recorder) Retry() {
	if r == nil {
		return
	}
	r.DownloadRetries.Inc()
}

// Page records one metadata page fetch ("ok" or "error").
func (r *Recorder) Page(result string, records int) {
	if r == nil {
		return
	}
	r.MetadataPages.WithLabelValues(result).Inc()
	if records > 0 {
		r.MetadataRecords.Add(float64(records))
	}
}

// Filter records one classifier decision ("kept" or "dropped").
func (r *Recorder) Filter(decision string) {
	if r == nil {
		return
	}
	r.FilterDecisions.WithLabelValues(decision).Inc()
}

// Geocode records one geocoder lookup ("cache" or "remote").
func (r *Recorder) Geocode(source string) {
	if r == nil {
		return
	}
	r.GeocodeRequests.WithLabelValues(source).Inc()
}

// Run records the total run time.
func (r *Recorder) Run(d time.Duration) {
	if r == nil {
		return
	}
	r.RunDuration.Set(d.Seconds())
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
