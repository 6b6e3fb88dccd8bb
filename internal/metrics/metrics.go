// Package metrics exports wheel telemetry for Prometheus. Counts are only
// exported here; any aggregation happens in the monitoring stack.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Claim results used as the "result" label of redemptions_total.
const (
	ClaimRedeemed       = "claimed"
	ClaimAlreadyClaimed = "already_claimed"
	ClaimExpired        = "expired"
	ClaimRejected       = "rejected"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	spins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spinwheel",
			Subsystem: "wheel",
			Name:      "spins_total",
			Help:      "Resolved spins by outcome.",
		},
		[]string{"outcome"},
	)

	claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spinwheel",
			Subsystem: "claims",
			Name:      "redemptions_total",
			Help:      "Redemption attempts by result.",
		},
		[]string{"result"},
	)

	expirations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spinwheel",
			Subsystem: "claims",
			Name:      "expired_total",
			Help:      "Pending claims moved to EXPIRED.",
		},
	)

	codeCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spinwheel",
			Subsystem: "claims",
			Name:      "code_collisions_total",
			Help:      "Generated claim codes rejected because they were outstanding.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spinwheel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spinwheel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		spins,
		claims,
		expirations,
		codeCollisions,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSpin counts one resolved spin.
func RecordSpin(won bool) {
	outcome := "lose"
	if won {
		outcome = "win"
	}
	spins.WithLabelValues(outcome).Inc()
}

// RecordClaim counts one redemption attempt.
func RecordClaim(result string) {
	claims.WithLabelValues(result).Inc()
}

// RecordExpired counts claims moved to EXPIRED.
func RecordExpired(n int) {
	expirations.Add(float64(n))
}

// RecordCodeCollision counts one rejected claim code.
func RecordCodeCollision() {
	codeCollisions.Inc()
}

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path string, status int, took time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(took.Seconds())
}
