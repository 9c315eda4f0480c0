package emitter

import (
	"testing"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/classifier"
	"github.com/relabs-tech/paddle_helm/internal/gesture"
)

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(e Event) { r.events = append(r.events, e) }

func TestStateTransitionsAreDeduplicated(t *testing.T) {
	rec := &recorder{}
	e := New(rec)
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	// The first state always fires, repeats do not.
	e.EmitState(classifier.Idle, 1, at)
	e.EmitState(classifier.Idle, 1, at.Add(time.Second))
	e.EmitState(classifier.Idle, 1, at.Add(2*time.Second))
	e.EmitState(classifier.Forward, 0.8, at.Add(3*time.Second))
	e.EmitState(classifier.Forward, 0.7, at.Add(4*time.Second))
	e.EmitState(classifier.Idle, 1, at.Add(5*time.Second))

	want := []EventType{Idle, Forward, Idle}
	if len(rec.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(rec.events), len(want))
	}
	for i, w := range want {
		if rec.events[i].Type != w {
			t.Errorf("event %d = %s, want %s", i, rec.events[i].Type, w)
		}
	}
}

func TestStateEventMapping(t *testing.T) {
	tests := []struct {
		state classifier.State
		want  EventType
	}{
		{classifier.Idle, Idle},
		{classifier.Forward, Forward},
		{classifier.TurnLeft, TurnLeft},
		{classifier.TurnRight, TurnRight},
	}

	for _, tt := range tests {
		rec := &recorder{}
		e := New(rec)
		e.EmitState(tt.state, 0.5, time.Now())
		if len(rec.events) != 1 || rec.events[0].Type != tt.want {
			t.Errorf("state %v mapped to %v, want %s", tt.state, rec.events, tt.want)
		}
	}
}

func TestStrokesAreNeverDeduplicated(t *testing.T) {
	rec := &recorder{}
	e := New(rec)
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	s := classifier.Stroke{Direction: classifier.Left, At: at, Intensity: 30}
	e.EmitStroke(s, 0.9)
	e.EmitStroke(s, 0.9)

	if len(rec.events) != 2 {
		t.Fatalf("got %d events for two identical strokes, want 2", len(rec.events))
	}
	if rec.events[0].Type != PaddleLeft || rec.events[0].Intensity != 30 {
		t.Errorf("stroke event = %+v, want paddle_left with intensity 30", rec.events[0])
	}

	e.EmitStroke(classifier.Stroke{Direction: classifier.Right, At: at, Intensity: 12}, 0.4)
	if rec.events[2].Type != PaddleRight {
		t.Errorf("stroke event = %+v, want paddle_right", rec.events[2])
	}
}

func TestGestureEvents(t *testing.T) {
	rec := &recorder{}
	e := New(rec)
	at := time.Now()

	e.EmitGesture(gesture.StartGame, at)
	e.EmitGesture(gesture.RestartGame, at)
	e.EmitGesture(gesture.None, at)

	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2 (None must not dispatch)", len(rec.events))
	}
	if rec.events[0].Type != StartGame || rec.events[1].Type != RestartGame {
		t.Errorf("gesture events = %v", rec.events)
	}
}

func TestResetRearmsStateEmission(t *testing.T) {
	rec := &recorder{}
	e := New(rec)
	at := time.Now()

	e.EmitState(classifier.Idle, 1, at)
	e.Reset()
	e.EmitState(classifier.Idle, 1, at)

	if len(rec.events) != 2 {
		t.Errorf("got %d events, want the post-reset state to fire again", len(rec.events))
	}
}

func TestCounts(t *testing.T) {
	e := New(nil) // nil handler: counting still works
	at := time.Now()

	e.EmitState(classifier.Forward, 1, at)
	e.EmitStroke(classifier.Stroke{Direction: classifier.Left, At: at}, 1)
	e.EmitStroke(classifier.Stroke{Direction: classifier.Left, At: at}, 1)
	e.EmitGesture(gesture.StartGame, at)

	counts := e.Counts()
	if counts[Forward] != 1 || counts[PaddleLeft] != 2 || counts[StartGame] != 1 {
		t.Errorf("counts = %v", counts)
	}

	// The returned map is a copy.
	counts[Forward] = 99
	if e.Counts()[Forward] != 1 {
		t.Error("Counts returned a live reference")
	}
}
