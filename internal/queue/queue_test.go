package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	at := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := BookingEvent{Type: TypeBookingConfirmed, BookingID: 9, UserID: 2, Username: "alice", SeatID: 14, ShowingID: 3, OccurredAt: at}
	assert.Equal(t,
		"[2030-01-02T03:04:05Z] Booking confirmed | booking_id=9 | user_id=2 | user=\"alice\" | screening_id=3 | seat_id=14\n",
		FormatLine(ev))

	ev.Type = TypeBookingCanceled
	assert.Contains(t, FormatLine(ev), "Booking canceled")
}

func TestBookingLogHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	bl := NewBookingLog(path)

	for i := uint64(1); i <= 2; i++ {
		body, err := json.Marshal(BookingEvent{Type: TypeBookingConfirmed, BookingID: i, OccurredAt: time.Now()})
		require.NoError(t, err)
		require.NoError(t, bl.Handle(body))
	}
	assert.Error(t, bl.Handle([]byte("{not json")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "booking_id=1")
	assert.Contains(t, lines[1], "booking_id=2")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []BookingEvent
	err    error
	block  chan struct{}
}

func (r *recordingPublisher) Publish(_ context.Context, ev BookingEvent) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func TestAsyncForwardsAndDrains(t *testing.T) {
	rec := &recordingPublisher{}
	a := NewAsync(rec, 8, nil)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, a.Publish(context.Background(), BookingEvent{Type: TypeBookingConfirmed, BookingID: i}))
	}
	a.Close()

	require.Len(t, rec.events, 5)
	assert.Equal(t, uint64(5), rec.events[4].BookingID)
	assert.Error(t, a.Publish(context.Background(), BookingEvent{}), "closed publisher rejects events")
	a.Close()
}

func TestAsyncDropsWhenFull(t *testing.T) {
	rec := &recordingPublisher{block: make(chan struct{})}
	a := NewAsync(rec, 1, nil)

	var dropped int
	for i := 0; i < 10; i++ {
		if err := a.Publish(context.Background(), BookingEvent{Type: TypeBookingCanceled}); errors.Is(err, ErrBacklogFull) {
			dropped++
		}
	}
	assert.Greater(t, dropped, 0)
	close(rec.block)
	a.Close()
}

func TestAsyncSwallowsFailures(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("broker down")}
	a := NewAsync(rec, 4, nil)
	assert.NoError(t, a.Publish(context.Background(), BookingEvent{Type: TypeBookingConfirmed}))
	a.Close()
	assert.Len(t, rec.events, 1)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), BookingEvent{}))
}
