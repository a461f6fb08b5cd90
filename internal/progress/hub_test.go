package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSink accumulates consumed events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *recordingSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *recordingSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func validEvent(stage Stage) Event {
	evt := Event{
		RunID:   "run-1",
		TS:      time.Now().UTC(),
		Stage:   stage,
		Channel: "test",
	}
	if stage == StageProductDone || stage == StageProductSkip {
		evt.ProductID = "p1"
	}
	return evt
}

func TestHubDeliversEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(validEvent(StageRunStart))
	hub.Emit(validEvent(StageProductDone))
	hub.Emit(validEvent(StageRunDone))

	require.NoError(t, hub.Close(context.Background()))
	events := sink.snapshot()
	require.Len(t, events, 3)
	require.Equal(t, StageRunStart, events[0].Stage)
	require.Equal(t, StageRunDone, events[2].Stage)
	require.True(t, sink.closed)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageRunStart})                              // missing run id and ts
	hub.Emit(Event{RunID: "run-1", TS: time.Now(), Stage: Stage("?")}) // unknown stage
	hub.Emit(validEvent(StageRunStart))

	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.snapshot(), 1)
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(StageRunStart))
	require.Empty(t, sink.snapshot())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, validEvent(StageRunStart).Validate())
	require.NoError(t, validEvent(StageProductSkip).Validate())

	evt := validEvent(StageProductDone)
	evt.ProductID = ""
	require.Error(t, evt.Validate())

	evt = validEvent(StageRunStart)
	evt.RunID = ""
	require.Error(t, evt.Validate())

	evt = validEvent(StageRunStart)
	evt.Dur = -time.Second
	require.Error(t, evt.Validate())
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(validEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
}
