package classifier

import (
	"testing"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/sample"
	"github.com/relabs-tech/paddle_helm/internal/signal"
)

func testConfig() Config {
	return Config{
		IdleThreshold:         10,
		IdleTimeout:           500 * time.Millisecond,
		TurnThreshold:         15,
		TurnStabilityTime:     2 * time.Second,
		StrokeThreshold:       25,
		StrokeCooldown:        300 * time.Millisecond,
		ConsecutiveWindow:     time.Second,
		AlternatingWindow:     2 * time.Second,
		MinAlternatingStrokes: 4,
	}
}

func cond(axis, combined float64) signal.Conditioned {
	return signal.Conditioned{
		Raw:      sample.Vec3{X: axis},
		Smoothed: sample.Vec3{X: axis},
		Combined: combined,
	}
}

// ticker advances a classifier with a fixed tick length and tracks time.
type ticker struct {
	c  *Classifier
	t  time.Time
	dt time.Duration
}

func newTicker(t *testing.T, cfg Config, dt time.Duration) *ticker {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &ticker{
		c:  c,
		t:  time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		dt: dt,
	}
}

func (tk *ticker) tick(sig signal.Conditioned) Result {
	tk.t = tk.t.Add(tk.dt)
	return tk.c.Tick(sig, tk.t, tk.dt)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero-idle-threshold", func(c *Config) { c.IdleThreshold = 0 }, true},
		{"zero-turn-threshold", func(c *Config) { c.TurnThreshold = 0 }, true},
		{"zero-stability-time", func(c *Config) { c.TurnStabilityTime = 0 }, true},
		{"zero-stroke-cooldown", func(c *Config) { c.StrokeCooldown = 0 }, true},
		{"one-alternating-stroke", func(c *Config) { c.MinAlternatingStrokes = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartsIdleAndStaysIdleWhenQuiet(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	if tk.c.State() != Idle {
		t.Fatalf("initial state = %v, want Idle", tk.c.State())
	}
	for i := 0; i < 10; i++ {
		r := tk.tick(cond(0, 0))
		if r.State != Idle || r.Changed {
			t.Fatalf("tick %d: state=%v changed=%v, want steady Idle", i, r.State, r.Changed)
		}
	}
	if c := tk.c.Confidence(); c != 1 {
		t.Errorf("idle confidence with zero signal = %g, want 1", c)
	}
}

func TestSustainedTurnNeedsStabilityWindow(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	// +X above the turn threshold, below the stroke threshold. The first
	// tick arms the sign; the window elapses 2s of stable sign later.
	transitions := 0
	var lastState State
	for i := 0; i < 25; i++ {
		r := tk.tick(cond(20, 20))
		if r.Changed {
			transitions++
			lastState = r.State
		}
		if i < 20 && r.State != Idle {
			t.Fatalf("tick %d: state=%v before stability window elapsed, want Idle held", i, r.State)
		}
	}
	if transitions != 1 || lastState != TurnRight {
		t.Errorf("transitions=%d last=%v, want exactly one change to TurnRight", transitions, lastState)
	}
}

func TestSustainedTurnLeftOnNegativeAxis(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	for i := 0; i < 25; i++ {
		tk.tick(cond(-20, 20))
	}
	if tk.c.State() != TurnLeft {
		t.Errorf("state = %v, want TurnLeft for sustained negative axis", tk.c.State())
	}
}

func TestSignFlipRestartsStabilityTimer(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	// 1.5s of +X, a flip, then 1.5s of -X: neither run reaches 2s.
	for i := 0; i < 15; i++ {
		tk.tick(cond(20, 20))
	}
	for i := 0; i < 15; i++ {
		if r := tk.tick(cond(-20, 20)); r.State != Idle {
			t.Fatalf("state=%v after sign flip, want Idle until a full stable window", r.State)
		}
	}
}

func TestStrokeIsEdgeTriggered(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	r := tk.tick(cond(30, 30))
	if r.Stroke == nil || r.Stroke.Direction != Right {
		t.Fatalf("stroke = %+v, want a Right stroke on the crossing", r.Stroke)
	}
	if r.Stroke.Intensity != 30 {
		t.Errorf("intensity = %g, want 30", r.Stroke.Intensity)
	}

	// Held above the threshold: no second stroke.
	for i := 0; i < 5; i++ {
		if r := tk.tick(cond(30, 30)); r.Stroke != nil {
			t.Fatal("stroke fired again without leaving the band")
		}
	}
}

func TestStrokeCooldownSuppressesSameDirection(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	if r := tk.tick(cond(30, 30)); r.Stroke == nil {
		t.Fatal("setup: first stroke missing")
	}
	// Drop out of the band, then cross again 200ms later: inside the
	// 300ms cooldown, so the crossing records nothing.
	tk.tick(cond(5, 15))
	if r := tk.tick(cond(30, 30)); r.Stroke != nil {
		t.Error("stroke fired inside the per-direction cooldown")
	}

	// The opposite direction has its own cooldown and fires immediately.
	tk.tick(cond(5, 15))
	if r := tk.tick(cond(-30, 30)); r.Stroke == nil || r.Stroke.Direction != Left {
		t.Errorf("stroke = %+v, want Left unaffected by the Right cooldown", r.Stroke)
	}
}

func TestDoubleStrokeTurn(t *testing.T) {
	tk := newTicker(t, testConfig(), 200*time.Millisecond)

	// Two Right strokes inside the consecutive window, each preceded by a
	// dip so the crossing re-arms and the cooldown expires.
	tk.tick(cond(30, 30))
	tk.tick(cond(5, 15))
	tk.tick(cond(5, 15))
	r := tk.tick(cond(30, 30))
	if r.Stroke == nil {
		t.Fatal("second stroke missing")
	}
	if r.State != TurnRight {
		t.Errorf("state = %v after double Right stroke, want TurnRight", r.State)
	}
}

func TestAlternatingStrokesReadAsForward(t *testing.T) {
	tk := newTicker(t, testConfig(), 200*time.Millisecond)

	// L, R, L, R with dips between the crossings, all within 2s.
	axes := []float64{-30, 5, 30, 5, -30, 5}
	for _, a := range axes {
		tk.tick(cond(a, 30))
	}
	r := tk.tick(cond(30, 30))
	if r.State != Forward || !r.Changed {
		t.Fatalf("state=%v changed=%v after alternating run, want Forward transition", r.State, r.Changed)
	}

	// The history was consumed: the same strokes cannot immediately
	// re-trigger on the next tick.
	r = tk.tick(cond(5, 15))
	if r.Changed {
		t.Errorf("state changed to %v right after Forward, want hold", r.State)
	}
}

func TestForwardRetriggersAfterNewStrokes(t *testing.T) {
	tk := newTicker(t, testConfig(), 200*time.Millisecond)

	run := []float64{-30, 5, 30, 5, -30, 5, 30}
	for _, a := range run {
		tk.tick(cond(a, 30))
	}
	if tk.c.State() != Forward {
		t.Fatal("setup: first alternating run did not reach Forward")
	}

	// Drop to Idle, then a completely fresh alternating run must reach
	// Forward again from scratch.
	tk.tick(cond(0, 0))
	if tk.c.State() != Idle {
		t.Fatal("setup: quiet tick did not return to Idle")
	}
	for _, a := range run {
		tk.tick(cond(a, 30))
	}
	if tk.c.State() != Forward {
		t.Errorf("state = %v after second run, want Forward", tk.c.State())
	}
}

func TestBriefDipDoesNotClearHistory(t *testing.T) {
	tk := newTicker(t, testConfig(), 200*time.Millisecond)

	// Two alternating strokes, a single 200ms idle dip, then two more.
	// The dip is shorter than the 500ms idle timeout, so all four strokes
	// still count toward the forward pattern.
	tk.tick(cond(-30, 30))
	tk.tick(cond(5, 15))
	tk.tick(cond(30, 30))
	tk.tick(cond(0, 0)) // dip
	tk.tick(cond(-30, 30))
	tk.tick(cond(5, 15))
	r := tk.tick(cond(30, 30))
	if r.State != Forward {
		t.Errorf("state = %v, want Forward with history surviving the dip", r.State)
	}
}

func TestIdleTimeoutClearsHistory(t *testing.T) {
	tk := newTicker(t, testConfig(), 200*time.Millisecond)

	tk.tick(cond(-30, 30))
	tk.tick(cond(5, 15))
	tk.tick(cond(30, 30))

	// 600ms of idle exceeds the 500ms timeout and wipes the history.
	for i := 0; i < 3; i++ {
		tk.tick(cond(0, 0))
	}

	tk.tick(cond(-30, 30))
	tk.tick(cond(5, 15))
	r := tk.tick(cond(30, 30))
	if r.State == Forward {
		t.Error("reached Forward from two fresh strokes, want cleared history to require a full run")
	}
}

func TestIdleWinsImmediately(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	for i := 0; i < 25; i++ {
		tk.tick(cond(20, 20))
	}
	if tk.c.State() != TurnRight {
		t.Fatal("setup: sustained turn not reached")
	}

	r := tk.tick(cond(0, 0))
	if r.State != Idle || !r.Changed {
		t.Errorf("state=%v changed=%v on quiet signal, want immediate Idle", r.State, r.Changed)
	}
}

func TestConfidenceStaysInRange(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	inputs := []signal.Conditioned{
		cond(0, 0), cond(200, 200), cond(-30, 30), cond(5, 15), cond(30, 30),
	}
	for i := 0; i < 50; i++ {
		r := tk.tick(inputs[i%len(inputs)])
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("tick %d: confidence %g out of [0,1]", i, r.Confidence)
		}
	}
}

func TestReset(t *testing.T) {
	tk := newTicker(t, testConfig(), 100*time.Millisecond)

	for i := 0; i < 25; i++ {
		tk.tick(cond(20, 20))
	}
	tk.c.Reset()

	if tk.c.State() != Idle {
		t.Errorf("state = %v after reset, want Idle", tk.c.State())
	}
	// The stability timer restarted: the next tick must not turn.
	if r := tk.tick(cond(20, 20)); r.State != Idle {
		t.Errorf("state = %v right after reset, want Idle", r.State)
	}
}
