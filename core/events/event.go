package events

import (
	"sync"

	"mintgate/core/types"
)

// Event represents a structured state change emitted by the registry.
type Event interface {
	EventType() string
}

// Flattener is implemented by events that can render themselves into the
// string-keyed form used by the event log and RPC.
type Flattener interface {
	Event
	Event() *types.Event
}

// Flatten renders evt into its string-keyed form. Events that do not
// implement Flattener produce a record carrying only their type.
func Flatten(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if f, ok := evt.(Flattener); ok {
		return f.Event()
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, the event
// log, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans each event out to every configured emitter in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(evt Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Recorder keeps every emitted event in memory. Tests use it to assert on
// emission.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
