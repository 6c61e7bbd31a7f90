package metrics

import (
	"net/http"
	"time"

	"yt2minio/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and exposes metrics
type Collector struct {
	itemsTotal       *prometheus.CounterVec
	bytesTotal       prometheus.Counter
	inflightTransfer prometheus.Gauge
	duration         prometheus.Histogram
	progressTracker  *progress.Tracker
}

// New creates a new metrics collector registered against reg
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		itemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_items_total",
				Help: "Total number of items processed",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_bytes_total",
				Help: "Total bytes uploaded to the store",
			},
		),
		inflightTransfer: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_inflight_transfer",
				Help: "Whether a transfer is currently running",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archive_item_duration_seconds",
				Help:    "Time taken to archive an item",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	// Register metrics
	reg.MustRegister(c.itemsTotal)
	reg.MustRegister(c.bytesTotal)
	reg.MustRegister(c.inflightTransfer)
	reg.MustRegister(c.duration)

	return c
}

// IncUploaded increments the uploaded item counter
func (c *Collector) IncUploaded() {
	c.itemsTotal.WithLabelValues("uploaded").Inc()
	c.progressTracker.AddUploaded()
}

// IncReUploaded increments the re-uploaded item counter
func (c *Collector) IncReUploaded() {
	c.itemsTotal.WithLabelValues("reuploaded").Inc()
	c.progressTracker.AddReUploaded()
}

// IncSkipped increments the skipped item counter
func (c *Collector) IncSkipped() {
	c.itemsTotal.WithLabelValues("skipped").Inc()
	c.progressTracker.AddSkipped()
}

// IncFailed increments the failed item counter
func (c *Collector) IncFailed() {
	c.itemsTotal.WithLabelValues("failed").Inc()
	c.progressTracker.AddFailed()
}

// IncDrained increments the counter of items abandoned after shutdown
func (c *Collector) IncDrained() {
	c.itemsTotal.WithLabelValues("drained").Inc()
	c.progressTracker.AddDrained()
}

// AddBytes adds to total bytes uploaded
func (c *Collector) AddBytes(bytes int64) {
	c.bytesTotal.Add(float64(bytes))
}

// IncInFlight marks a transfer as running
func (c *Collector) IncInFlight() {
	c.inflightTransfer.Inc()
}

// DecInFlight marks a transfer as finished
func (c *Collector) DecInFlight() {
	c.inflightTransfer.Dec()
}

// ObserveDuration observes one item's processing duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// StartServer starts the metrics HTTP server
func (c *Collector) StartServer(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}

// SetTotalItems sets the enumerated item count for progress tracking
func (c *Collector) SetTotalItems(n int64) {
	c.progressTracker.SetTotalItems(n)
}
