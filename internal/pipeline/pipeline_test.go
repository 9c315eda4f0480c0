package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/classifier"
	"github.com/relabs-tech/paddle_helm/internal/emitter"
	"github.com/relabs-tech/paddle_helm/internal/gesture"
	"github.com/relabs-tech/paddle_helm/internal/sample"
	"github.com/relabs-tech/paddle_helm/internal/signal"
)

const tick = 20 * time.Millisecond

// gyroBias is the constant sensor offset fed during calibration; motion
// in the tests is expressed on top of it.
var gyroBias = sample.Vec3{X: 0.5, Y: -0.2, Z: 0.1}

func testConfig() Config {
	return Config{
		Calib: calib.Config{
			Mode:               calib.ZeroPoint,
			RequiredSamples:    10,
			MinSamples:         5,
			StabilityThreshold: 3,
			SessionTimeout:     10 * time.Second,
			RetryDelay:         time.Second,
			MaxRetries:         2,
		},
		Signal: signal.Config{
			DeadZone:        1,
			SmoothingFactor: 1, // pass-through keeps the scenarios direct
			Weights:         sample.Vec3{X: 1, Y: 0.5, Z: 0.5},
		},
		Classifier: classifier.Config{
			IdleThreshold:         10,
			IdleTimeout:           500 * time.Millisecond,
			TurnThreshold:         15,
			TurnStabilityTime:     500 * time.Millisecond,
			StrokeThreshold:       25,
			StrokeCooldown:        100 * time.Millisecond,
			ConsecutiveWindow:     time.Second,
			AlternatingWindow:     2 * time.Second,
			MinAlternatingStrokes: 4,
		},
		Gesture: gesture.Config{
			StartThreshold:   8000,
			RestartThreshold: -8000,
			Cooldown:         time.Second,
		},
		MaxRate:  500,
		MaxAccel: 32767,
	}
}

type recorder struct {
	events []emitter.Event
}

func (r *recorder) HandleEvent(e emitter.Event) { r.events = append(r.events, e) }

func (r *recorder) ofType(t emitter.EventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// rig drives a pipeline tick by tick with advancing sample timestamps.
type rig struct {
	p   *Pipeline
	rec *recorder
	t   time.Time
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	rec := &recorder{}
	p, err := New(cfg, rec)
	if err != nil {
		t.Fatal(err)
	}
	return &rig{p: p, rec: rec, t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (r *rig) feed(gyro sample.Vec3, accelY int32) {
	r.t = r.t.Add(tick)
	r.p.Tick(sample.SensorSample{Gyro: gyro, AccelY: accelY, T: r.t})
}

// calibrate starts a session and feeds still biased samples to completion.
func (r *rig) calibrate(t *testing.T) {
	t.Helper()
	r.p.RequestRecalibration(calib.ZeroPoint)
	for i := 0; i < 12; i++ {
		r.feed(gyroBias, 0)
	}
	if r.p.Calibrator().State() != calib.Calibrated {
		t.Fatal("setup: calibration did not complete")
	}
}

func TestNoEventsBeforeCalibration(t *testing.T) {
	r := newRig(t, testConfig())

	// Heavy motion and gesture-level spikes while uncalibrated: nothing
	// may reach the handler.
	for i := 0; i < 20; i++ {
		r.feed(sample.Vec3{X: 30}, 9000)
	}
	if len(r.rec.events) != 0 {
		t.Fatalf("got %d events while uncalibrated, want 0: %v", len(r.rec.events), r.rec.events)
	}

	// Same during an in-progress session.
	r.p.RequestRecalibration(calib.ZeroPoint)
	for i := 0; i < 3; i++ {
		r.feed(sample.Vec3{X: 30}, 9000)
	}
	if len(r.rec.events) != 0 {
		t.Fatalf("got %d events while calibrating, want 0", len(r.rec.events))
	}
}

func TestSustainedTurnEndToEnd(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	// Bias plus 20 on X: after offset removal the axis reads 20, above
	// the turn threshold, below the stroke threshold.
	for i := 0; i < 40; i++ {
		r.feed(gyroBias.Add(sample.Vec3{X: 20}), 0)
	}

	if got := r.rec.ofType(emitter.TurnRight); got != 1 {
		t.Errorf("turn_right events = %d, want exactly 1", got)
	}
	if got := r.rec.ofType(emitter.PaddleRight); got != 0 {
		t.Errorf("paddle_right events = %d, want 0 below the stroke threshold", got)
	}

	// Quiet again: exactly one idle transition.
	for i := 0; i < 5; i++ {
		r.feed(gyroBias, 0)
	}
	if got := r.rec.ofType(emitter.Idle); got != 1 {
		t.Errorf("idle events = %d, want 1", got)
	}
}

func TestOffsetRemovalKeepsBiasedSensorIdle(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	// The raw bias alone must not read as motion once calibrated.
	for i := 0; i < 50; i++ {
		r.feed(gyroBias, 0)
	}
	if len(r.rec.events) != 0 {
		t.Errorf("got %d events from bias-only input, want 0: %v", len(r.rec.events), r.rec.events)
	}
}

func TestStrokeEmitsPaddleEvent(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	r.feed(gyroBias.Add(sample.Vec3{X: 30}), 0)
	if got := r.rec.ofType(emitter.PaddleRight); got != 1 {
		t.Fatalf("paddle_right events = %d, want 1", got)
	}
	r.feed(gyroBias.Add(sample.Vec3{X: 5}), 0)
	r.feed(gyroBias.Add(sample.Vec3{X: -30}), 0)
	if got := r.rec.ofType(emitter.PaddleLeft); got != 1 {
		t.Errorf("paddle_left events = %d, want 1", got)
	}
}

func TestGestureShortCircuitsClassification(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	// Stroke-level gyro and a gesture spike on the same tick: the gesture
	// wins, the stroke is not recorded.
	r.feed(gyroBias.Add(sample.Vec3{X: 30}), 9000)
	if got := r.rec.ofType(emitter.StartGame); got != 1 {
		t.Fatalf("start_game events = %d, want 1", got)
	}
	if got := r.rec.ofType(emitter.PaddleRight); got != 0 {
		t.Errorf("paddle_right events = %d on the gesture tick, want 0", got)
	}

	// Restart gesture after the cooldown.
	for i := 0; i < 60; i++ {
		r.feed(gyroBias, 0)
	}
	r.feed(gyroBias, -9000)
	if got := r.rec.ofType(emitter.RestartGame); got != 1 {
		t.Errorf("restart_game events = %d, want 1", got)
	}
}

func TestMalformedSamplesAreDropped(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	before := r.p.Stats()
	r.t = r.t.Add(tick)
	r.p.Tick(sample.SensorSample{Gyro: sample.Vec3{X: math.NaN()}, T: r.t})
	r.p.Tick(sample.SensorSample{Gyro: gyroBias}) // zero timestamp
	after := r.p.Stats()

	if after.Dropped != before.Dropped+2 {
		t.Errorf("dropped = %d, want %d", after.Dropped, before.Dropped+2)
	}
	if after.Accepted != before.Accepted {
		t.Errorf("accepted moved on malformed input: %d -> %d", before.Accepted, after.Accepted)
	}
	if len(r.rec.events) != 0 {
		t.Errorf("malformed samples produced events: %v", r.rec.events)
	}
}

func TestResetAppliesAtTickBoundary(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	r.p.RequestReset()
	// Nothing observable changes until the next sample arrives.
	if got := r.p.Stats().Calibration; got != "calibrated" {
		t.Fatalf("calibration = %q before the boundary tick, want calibrated", got)
	}

	r.feed(gyroBias, 0)
	st := r.p.Stats()
	if st.Calibration != "uncalibrated" {
		t.Errorf("calibration = %q after reset, want uncalibrated", st.Calibration)
	}
	if st.State != "idle" {
		t.Errorf("state = %q after reset, want idle", st.State)
	}
}

func TestRecalibrationKeepsOldProfileUntilComplete(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	r.p.RequestRecalibration(calib.ZeroPoint)
	r.feed(gyroBias, 0)
	if _, ok := r.p.Calibrator().Profile(); !ok {
		t.Fatal("previous profile dropped while the new session is running")
	}
	if got := r.p.Stats().Calibration; got != "calibrating" {
		t.Fatalf("calibration = %q, want calibrating", got)
	}

	for i := 0; i < 12; i++ {
		r.feed(gyroBias, 0)
	}
	if got := r.p.Stats().Calibration; got != "calibrated" {
		t.Errorf("calibration = %q after the session, want calibrated", got)
	}
}

func TestOfferDropsWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	s := sample.SensorSample{Gyro: gyroBias, T: time.Now()}
	if !p.Offer(s) {
		t.Fatal("first Offer failed on an empty queue")
	}
	if p.Offer(s) {
		t.Error("second Offer succeeded on a full queue, want drop")
	}
}

func TestStatsCountsEvents(t *testing.T) {
	r := newRig(t, testConfig())
	r.calibrate(t)

	r.feed(gyroBias.Add(sample.Vec3{X: 30}), 0)
	st := r.p.Stats()
	if st.Events[emitter.PaddleRight] != 1 {
		t.Errorf("events = %v, want one paddle_right", st.Events)
	}
	if st.Accepted == 0 {
		t.Error("accepted counter never moved")
	}
}
