package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotengine"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Availability cache lookups by kind and result.",
		},
		[]string{"kind", "result"},
	)

	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Availability cache invalidations by scope.",
		},
		[]string{"scope"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking lifecycle events by type and service.",
		},
		[]string{"event", "service_id"},
	)

	slotGenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_generations_total",
			Help:      "Slot grids computed.",
		},
	)

	slotGenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_generation_seconds",
			Help:      "Time spent computing a day slot grid.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, cacheRequests, cacheInvalidations, bookingEvents, slotGenerations, slotGenerationSeconds)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncCacheRequest counts a cache lookup; kind is day or week.
func IncCacheRequest(kind, result string) {
	cacheRequests.WithLabelValues(kind, result).Inc()
}

func IncCacheInvalidation(scope string) {
	cacheInvalidations.WithLabelValues(scope).Inc()
}

// IncBookingEvent counts a booking created, cancelled or completed.
func IncBookingEvent(event, serviceID string) {
	bookingEvents.WithLabelValues(event, serviceID).Inc()
}

// ObserveSlotGeneration records one slot grid computation.
func ObserveSlotGeneration(d time.Duration) {
	slotGenerations.Inc()
	slotGenerationSeconds.Observe(d.Seconds())
}
