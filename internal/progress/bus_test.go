package progress_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varunv-ux/getglow/internal/progress"
	"github.com/varunv-ux/getglow/pkg/models"
)

func TestPublish_NoSubscribers(t *testing.T) {
	bus := progress.NewMemoryBus()

	// Must not block or panic.
	bus.Publish(uuid.New(), progress.Event{Status: models.JobStatusProcessing})
	bus.Publish(uuid.New(), progress.Event{Status: models.JobStatusCompleted})
}

func TestPublish_FanOut(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	ch1 := bus.Subscribe(jobID)
	ch2 := bus.Subscribe(jobID)
	ch3 := bus.Subscribe(jobID)

	ev := progress.Event{JobID: jobID, Status: models.JobStatusProcessing}
	bus.Publish(jobID, ev)

	for _, ch := range []chan progress.Event{ch1, ch2, ch3} {
		got := <-ch
		assert.Equal(t, jobID, got.JobID)
		assert.Equal(t, models.JobStatusProcessing, got.Status)
	}
}

func TestPublish_JobIsolation(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobA := uuid.New()
	jobB := uuid.New()

	chA := bus.Subscribe(jobA)
	chB := bus.Subscribe(jobB)

	bus.Publish(jobA, progress.Event{JobID: jobA, Status: models.JobStatusProcessing})

	got := <-chA
	assert.Equal(t, jobA, got.JobID)

	select {
	case ev := <-chB:
		t.Fatalf("subscriber of job B received event for job A: %+v", ev)
	default:
	}
}

func TestPublish_TerminalClosesSubscribers(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	ch1 := bus.Subscribe(jobID)
	ch2 := bus.Subscribe(jobID)

	bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusCompleted})

	for _, ch := range []chan progress.Event{ch1, ch2} {
		ev, ok := <-ch
		require.True(t, ok, "terminal event should be delivered before close")
		assert.Equal(t, models.JobStatusCompleted, ev.Status)

		_, ok = <-ch
		assert.False(t, ok, "channel should be closed after terminal event")
	}

	assert.Equal(t, 0, bus.SubscriberCount(jobID))
}

func TestPublish_SlowSubscriberDropped(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	stuck := bus.Subscribe(jobID)
	healthy := bus.Subscribe(jobID)

	// Fill the stuck subscriber's buffer without ever reading.
	for i := 0; i < 16; i++ {
		bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusProcessing})
	}

	// The healthy subscriber was dropped too once its buffer filled; drain a
	// fresh subscriber instead to prove delivery still works.
	drainChannel(healthy)
	drainChannel(stuck)

	fresh := bus.Subscribe(jobID)
	bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusProcessing})

	ev := <-fresh
	assert.Equal(t, models.JobStatusProcessing, ev.Status)
	assert.Equal(t, 1, bus.SubscriberCount(jobID))
}

func TestPublish_OneBadSubscriberDoesNotStarveOthers(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	bad := bus.Subscribe(jobID)
	// Wedge the bad subscriber by filling its buffer ahead of time.
	for i := 0; i < 8; i++ {
		bad <- progress.Event{}
	}

	good := bus.Subscribe(jobID)
	bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusProcessing})

	ev := <-good
	assert.Equal(t, models.JobStatusProcessing, ev.Status)

	// The bad channel was dropped and closed.
	assert.Equal(t, 1, bus.SubscriberCount(jobID))
}

func TestUnsubscribe(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	ch := bus.Subscribe(jobID)
	require.Equal(t, 1, bus.SubscriberCount(jobID))

	bus.Unsubscribe(jobID, ch)
	assert.Equal(t, 0, bus.SubscriberCount(jobID))

	// Publishing after unsubscribe delivers nothing.
	bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusProcessing})
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unsubscribed channel received event: %+v", ev)
		}
	default:
	}
}

func TestUnsubscribe_UnknownChannel(t *testing.T) {
	bus := progress.NewMemoryBus()
	jobID := uuid.New()

	// Unsubscribing a channel the bus never saw must not panic.
	bus.Unsubscribe(jobID, make(chan progress.Event))

	ch := bus.Subscribe(jobID)
	bus.Publish(jobID, progress.Event{JobID: jobID, Status: models.JobStatusCompleted})
	ev := <-ch
	assert.True(t, ev.Terminal())
}

func TestEvent_Terminal(t *testing.T) {
	assert.False(t, progress.Event{Status: models.JobStatusPending}.Terminal())
	assert.False(t, progress.Event{Status: models.JobStatusProcessing}.Terminal())
	assert.True(t, progress.Event{Status: models.JobStatusCompleted}.Terminal())
	assert.True(t, progress.Event{Status: models.JobStatusFailed}.Terminal())
}

func drainChannel(ch chan progress.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
