package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fbs"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings committed to the store.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected because of an overlapping booking.",
		},
	)

	glimpseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "glimpse_duration_seconds",
			Help:      "Time spent computing availability glimpses.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	loginFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_failures_total",
			Help:      "Rejected login attempts.",
		},
	)

	eventsForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_forwarded_total",
			Help:      "Domain events handed to the broker, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			grpcRequests,
			bookingsCreated,
			bookingConflicts,
			glimpseDuration,
			loginFailures,
			eventsForwarded,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func ObserveGlimpse(d time.Duration) {
	glimpseDuration.Observe(d.Seconds())
}

func IncLoginFailure() {
	loginFailures.Inc()
}

// IncEventForwarded records outcome "sent", "retry" or "dead_letter".
func IncEventForwarded(outcome string) {
	eventsForwarded.WithLabelValues(outcome).Inc()
}
