// Package metrics exposes panelcap's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	decodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelcap",
			Subsystem: "decode",
			Name:      "total",
			Help:      "Format decode passes by outcome.",
		},
		[]string{"format", "outcome"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "panelcap",
			Subsystem: "decode",
			Name:      "duration_seconds",
			Help:      "Format decode duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"format"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelcap",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "panelcap",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	ingestSets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "panelcap",
			Subsystem: "ingest",
			Name:      "sets_total",
			Help:      "Inbox artifact sets processed, by result.",
		},
		[]string{"result"},
	)
	panelsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "panelcap",
			Subsystem: "store",
			Name:      "panels_saved_total",
			Help:      "Panel records written to the store.",
		},
	)
)

// Register adds every collector to the default registry once
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(decodeTotal, decodeDuration, httpRequests, httpDuration, ingestSets, panelsStored)
	})
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveDecode records one format pass. Its signature matches
// panelinfo.DecodeHook.
func ObserveDecode(format, outcome string, elapsed time.Duration) {
	Register()
	decodeTotal.WithLabelValues(format, outcome).Inc()
	if elapsed > 0 {
		decodeDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	}
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	Register()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordIngest counts one inbox set; result is "processed" or "failed"
func RecordIngest(result string) {
	Register()
	ingestSets.WithLabelValues(result).Inc()
}

// RecordPanelSaved counts one stored panel
func RecordPanelSaved() {
	Register()
	panelsStored.Inc()
}
