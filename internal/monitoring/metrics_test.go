package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(activeConnections)
	ConnectionOpened()
	ConnectionOpened()
	ConnectionClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(activeConnections))
	ConnectionClosed()
	assert.Equal(t, before, testutil.ToFloat64(activeConnections))
}

func TestCounters(t *testing.T) {
	c := requests.WithLabelValues("book_seat", "tcp", "conflict")
	before := testutil.ToFloat64(c)
	RecordRequest("book_seat", "tcp", "conflict", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(c))

	race := bookingConflicts.WithLabelValues("race")
	before = testutil.ToFloat64(race)
	RecordConflict("race")
	assert.Equal(t, before+1, testutil.ToFloat64(race))

	pub := eventsPublished.WithLabelValues("booking.confirmed", "ok")
	before = testutil.ToFloat64(pub)
	RecordPublish("booking.confirmed", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(pub))
}
