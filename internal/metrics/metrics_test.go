package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveSlotGeneration(time.Millisecond)
	})
}

func TestCacheCounters(t *testing.T) {
	before := testutil.ToFloat64(cacheRequests.WithLabelValues("day", "hit"))
	IncCacheRequest("day", "hit")
	IncCacheRequest("day", "hit")
	assert.Equal(t, before+2, testutil.ToFloat64(cacheRequests.WithLabelValues("day", "hit")))

	before = testutil.ToFloat64(cacheInvalidations.WithLabelValues("date"))
	IncCacheInvalidation("date")
	assert.Equal(t, before+1, testutil.ToFloat64(cacheInvalidations.WithLabelValues("date")))

	before = testutil.ToFloat64(slotGenerations)
	ObserveSlotGeneration(2 * time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(slotGenerations))
}

func TestBookingEvents(t *testing.T) {
	c := bookingEvents.WithLabelValues("booking_created", "cut")
	before := testutil.ToFloat64(c)
	IncBookingEvent("booking_created", "cut")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
