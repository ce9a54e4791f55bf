package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyspace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyspace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyspace_bookings_created_total",
			Help: "Total number of bookings created",
		},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyspace_booking_rejections_total",
			Help: "Total number of rejected booking requests by reason",
		},
		[]string{"reason"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyspace_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	BookingsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyspace_bookings_completed_total",
			Help: "Total number of bookings marked completed by the sweep",
		},
	)

	BookingsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyspace_bookings_purged_total",
			Help: "Total number of terminal bookings purged",
		},
	)

	PurgeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyspace_purge_failures_total",
			Help: "Total number of failed purge runs",
		},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyspace_cache_lookups_total",
			Help: "Day cache lookups by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBookingCreated() {
	BookingsCreatedTotal.Inc()
}

func RecordBookingRejected(reason string) {
	BookingRejectionsTotal.WithLabelValues(reason).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordBookingsCompleted(n int) {
	BookingsCompletedTotal.Add(float64(n))
}

func RecordBookingsPurged(n int) {
	BookingsPurgedTotal.Add(float64(n))
}

func RecordPurgeFailure() {
	PurgeFailuresTotal.Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}
