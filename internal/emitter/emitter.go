package emitter

import (
	"sync"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/classifier"
	"github.com/relabs-tech/paddle_helm/internal/gesture"
)

// EventType is the discrete control event vocabulary the downstream boat
// controller consumes.
type EventType string

const (
	PaddleLeft  EventType = "paddle_left"
	PaddleRight EventType = "paddle_right"
	TurnLeft    EventType = "turn_left"
	TurnRight   EventType = "turn_right"
	Forward     EventType = "forward"
	Idle        EventType = "idle"
	StartGame   EventType = "start_game"
	RestartGame EventType = "restart_game"
)

// Event is one dispatched control event.
type Event struct {
	Type       EventType `json:"type"`
	Intensity  float64   `json:"intensity,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	At         time.Time `json:"at"`
}

// Handler receives emitted events. Implementations are passed in at
// construction; the emitter holds no ambient global state. Delivery is
// in order and at-least-once from the consumer's perspective.
type Handler interface {
	HandleEvent(Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Event)

// HandleEvent calls f(e).
func (f HandlerFunc) HandleEvent(e Event) { f(e) }

// Emitter de-duplicates classifier state transitions and forwards every
// accepted stroke and gesture occurrence.
type Emitter struct {
	handler Handler

	lastState classifier.State
	haveState bool

	mu     sync.RWMutex
	counts map[EventType]uint64
}

// New creates an emitter dispatching to h.
func New(h Handler) *Emitter {
	return &Emitter{handler: h, counts: make(map[EventType]uint64)}
}

// EmitState dispatches a state event only when the state changed since the
// last call. Repeated identical states produce nothing.
func (e *Emitter) EmitState(st classifier.State, confidence float64, at time.Time) {
	if e.haveState && st == e.lastState {
		return
	}
	e.lastState = st
	e.haveState = true
	e.dispatch(Event{Type: stateEvent(st), Confidence: confidence, At: at})
}

// EmitStroke dispatches a paddle event for every accepted stroke; strokes
// are discrete occurrences, not state, so they are never de-duplicated.
func (e *Emitter) EmitStroke(s classifier.Stroke, confidence float64) {
	t := PaddleRight
	if s.Direction == classifier.Left {
		t = PaddleLeft
	}
	e.dispatch(Event{Type: t, Intensity: s.Intensity, Confidence: confidence, At: s.At})
}

// EmitGesture dispatches a gesture event.
func (e *Emitter) EmitGesture(g gesture.Event, at time.Time) {
	switch g {
	case gesture.StartGame:
		e.dispatch(Event{Type: StartGame, At: at})
	case gesture.RestartGame:
		e.dispatch(Event{Type: RestartGame, At: at})
	}
}

// Reset forgets the last seen state so the next EmitState always fires.
func (e *Emitter) Reset() {
	e.haveState = false
}

// Counts returns a copy of the per-type dispatch counters.
func (e *Emitter) Counts() map[EventType]uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[EventType]uint64, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

func (e *Emitter) dispatch(ev Event) {
	e.mu.Lock()
	e.counts[ev.Type]++
	e.mu.Unlock()
	if e.handler != nil {
		e.handler.HandleEvent(ev)
	}
}

func stateEvent(st classifier.State) EventType {
	switch st {
	case classifier.Forward:
		return Forward
	case classifier.TurnLeft:
		return TurnLeft
	case classifier.TurnRight:
		return TurnRight
	default:
		return Idle
	}
}
