package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boatlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "boatlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	linksActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "boatlink",
			Subsystem: "link",
			Name:      "active",
			Help:      "Links currently held by the registry.",
		},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boatlink",
			Subsystem: "link",
			Name:      "handshakes_total",
			Help:      "Handshake outcomes per link.",
		},
		[]string{"link", "outcome"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boatlink",
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Frames decoded per link and kind.",
		},
		[]string{"link", "kind"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boatlink",
			Subsystem: "link",
			Name:      "protocol_errors_total",
			Help:      "Malformed frames and invalid payloads per link.",
		},
		[]string{"link"},
	)
	pathTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boatlink",
			Subsystem: "path",
			Name:      "transfers_total",
			Help:      "Path uploads by outcome.",
		},
		[]string{"link", "outcome"},
	)
	pathAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "boatlink",
			Subsystem: "path",
			Name:      "transfer_attempts",
			Help:      "PathData sends per upload.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			linksActive, handshakes, framesReceived, protocolErrors,
			pathTransfers, pathAttempts,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func SetActiveLinks(n int) {
	RegisterMetrics()
	linksActive.Set(float64(n))
}

func RecordHandshake(link, outcome string) {
	RegisterMetrics()
	handshakes.WithLabelValues(link, outcome).Inc()
}

func RecordFrame(link, kind string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(link, kind).Inc()
}

func RecordProtocolError(link string) {
	RegisterMetrics()
	protocolErrors.WithLabelValues(link).Inc()
}

func RecordTransfer(link, outcome string, attempts int) {
	RegisterMetrics()
	pathTransfers.WithLabelValues(link, outcome).Inc()
	pathAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}
