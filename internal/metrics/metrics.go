// Package metrics provides Prometheus metrics for the scan engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scan client.
type Metrics struct {
	// Round metrics
	RoundsTotal   *prometheus.CounterVec
	RoundDuration *prometheus.HistogramVec

	// Partition metrics
	PendingPartitions *prometheus.GaugeVec
	PartitionsDropped *prometheus.CounterVec
	LeaderRedirects   *prometheus.CounterVec

	// Payload metrics
	RowsScanned *prometheus.CounterVec

	// Error metrics
	ScanErrors *prometheus.CounterVec

	// Export metrics
	RowsExported *prometheus.CounterVec
	ExportBytes  *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "partscan"
	}

	m := &Metrics{
		RoundsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rounds_total",
				Help:      "Total number of scan rounds executed",
			},
			[]string{"space", "label"},
		),
		RoundDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "round_duration_seconds",
				Help:      "Wall time of one fan-out/gather round",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"space", "label"},
		),
		PendingPartitions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_partitions",
				Help:      "Partitions still holding data for the scan",
			},
			[]string{"space", "label"},
		),
		PartitionsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_dropped_total",
				Help:      "Partitions removed from the scan, by reason",
			},
			[]string{"space", "label", "reason"},
		),
		LeaderRedirects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leader_redirects_total",
				Help:      "Partitions reassigned after a leader change",
			},
			[]string{"space", "label"},
		),
		RowsScanned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_scanned_total",
				Help:      "Raw rows received from storage hosts",
			},
			[]string{"space", "label"},
		),
		ScanErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_errors_total",
				Help:      "Per-host scan errors, by kind",
			},
			[]string{"space", "label", "kind"},
		),
		RowsExported: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_exported_total",
				Help:      "Decoded rows written to export sinks",
			},
			[]string{"space", "label", "sink"},
		),
		ExportBytes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_bytes_total",
				Help:      "Bytes written to export sinks",
			},
			[]string{"space", "label", "sink"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Space string
	Label string
}

// IncRounds increments the rounds counter.
func (m *Metrics) IncRounds(l Labels) {
	m.RoundsTotal.WithLabelValues(l.Space, l.Label).Inc()
}

// ObserveRoundDuration records the wall time of one round.
func (m *Metrics) ObserveRoundDuration(l Labels, seconds float64) {
	m.RoundDuration.WithLabelValues(l.Space, l.Label).Observe(seconds)
}

// SetPendingPartitions sets the count of partitions still pending.
func (m *Metrics) SetPendingPartitions(l Labels, count float64) {
	m.PendingPartitions.WithLabelValues(l.Space, l.Label).Set(count)
}

// IncPartitionsDropped increments the dropped-partitions counter.
func (m *Metrics) IncPartitionsDropped(l Labels, reason string) {
	m.PartitionsDropped.WithLabelValues(l.Space, l.Label, reason).Inc()
}

// IncLeaderRedirects increments the leader redirect counter.
func (m *Metrics) IncLeaderRedirects(l Labels) {
	m.LeaderRedirects.WithLabelValues(l.Space, l.Label).Inc()
}

// AddRowsScanned adds to the scanned rows counter.
func (m *Metrics) AddRowsScanned(l Labels, count float64) {
	m.RowsScanned.WithLabelValues(l.Space, l.Label).Add(count)
}

// IncScanErrors increments the scan errors counter.
func (m *Metrics) IncScanErrors(l Labels, kind string) {
	m.ScanErrors.WithLabelValues(l.Space, l.Label, kind).Inc()
}

// AddRowsExported adds to the exported rows counter.
func (m *Metrics) AddRowsExported(l Labels, sink string, count float64) {
	m.RowsExported.WithLabelValues(l.Space, l.Label, sink).Add(count)
}

// AddExportBytes adds to the exported bytes counter.
func (m *Metrics) AddExportBytes(l Labels, sink string, count float64) {
	m.ExportBytes.WithLabelValues(l.Space, l.Label, sink).Add(count)
}
