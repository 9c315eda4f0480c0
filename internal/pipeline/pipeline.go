package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/classifier"
	"github.com/relabs-tech/paddle_helm/internal/emitter"
	"github.com/relabs-tech/paddle_helm/internal/gesture"
	"github.com/relabs-tech/paddle_helm/internal/sample"
	"github.com/relabs-tech/paddle_helm/internal/signal"
)

// Config aggregates the component configurations.
type Config struct {
	Calib      calib.Config
	Signal     signal.Config
	Classifier classifier.Config
	Gesture    gesture.Config

	// MaxRate / MaxAccel bound samples at the boundary; zero disables.
	MaxRate  float64
	MaxAccel int32

	// QueueSize is the capacity of the cross-goroutine sample hand-off.
	QueueSize int
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Accepted    uint64                       `json:"accepted"`
	Dropped     uint64                       `json:"dropped"`
	Events      map[emitter.EventType]uint64 `json:"events"`
	State       string                       `json:"state"`
	Confidence  float64                      `json:"confidence"`
	Calibration string                       `json:"calibration"`
	Retries     int                          `json:"calibration_retries"`
}

// Pipeline drives the whole chain once per sample on a single goroutine:
// calibration session, conditioner, gesture detector, classifier, emitter.
// Cross-goroutine sources hand samples off through a FIFO channel so the
// temporal ordering the pattern logic depends on is preserved.
type Pipeline struct {
	validator   *sample.Validator
	calibrator  *calib.Calibrator
	conditioner *signal.Conditioner
	classifier  *classifier.Classifier
	gestures    *gesture.Detector
	emitter     *emitter.Emitter

	queue    chan sample.SensorSample
	lastTick time.Time
	haveTick bool

	// Control requests are applied at tick boundaries only, so the emitter
	// never observes partially updated state.
	reqMu        sync.Mutex
	pendingReset bool
	pendingRecal *calib.Mode

	// snapshot is the last published state, readable from other goroutines.
	snapMu sync.RWMutex
	snap   snapshot
}

type snapshot struct {
	state       string
	confidence  float64
	calibration string
	retries     int
}

// New builds a pipeline. All component configurations are validated here;
// an invalid threshold is fatal at construction.
func New(cfg Config, h emitter.Handler) (*Pipeline, error) {
	cal, err := calib.New(cfg.Calib)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cond, err := signal.New(cfg.Signal)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	cls, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	ges, err := gesture.New(cfg.Gesture)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pipeline{
		validator:   sample.NewValidator(cfg.MaxRate, cfg.MaxAccel),
		calibrator:  cal,
		conditioner: cond,
		classifier:  cls,
		gestures:    ges,
		emitter:     emitter.New(h),
		queue:       make(chan sample.SensorSample, queueSize),
	}, nil
}

// Calibrator exposes the calibration component for session-driving
// surfaces (guided calibration, profile restore).
func (p *Pipeline) Calibrator() *calib.Calibrator { return p.calibrator }

// Offer enqueues a sample from another goroutine. It reports false when
// the queue is full; the sample is dropped rather than blocking the
// producer, and the drop is counted.
func (p *Pipeline) Offer(s sample.SensorSample) bool {
	select {
	case p.queue <- s:
		return true
	default:
		return false
	}
}

// Run drains the hand-off queue until the context is canceled. It is the
// single goroutine that ever touches pipeline state.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-p.queue:
			p.Tick(s)
		}
	}
}

// Tick processes one sample through the entire chain. Malformed samples
// are dropped at the boundary and treated as "no new information".
func (p *Pipeline) Tick(s sample.SensorSample) {
	p.applyPending()

	defer p.publishSnapshot()

	if err := p.validator.Check(s); err != nil {
		log.Printf("pipeline: dropped sample: %v", err)
		return
	}

	var dt time.Duration
	if p.haveTick {
		dt = s.T.Sub(p.lastTick)
	}
	p.lastTick = s.T
	p.haveTick = true

	// While a session is running (or none has completed) the controller
	// receives no events; "no output yet" is a valid idle state downstream.
	if p.calibrator.State() != calib.Calibrated {
		p.calibrator.Feed(s)
		return
	}

	rate, _ := p.calibrator.Apply(s.Gyro)

	// A gesture and a stroke are mutually exclusive outcomes per tick; the
	// gesture detector short-circuits classification when it fires.
	if g := p.gestures.Tick(s.AccelY, dt); g != gesture.None {
		p.conditioner.Condition(rate, s.AccelY, false, dt)
		p.emitter.EmitGesture(g, s.T)
		return
	}

	idle := p.classifier.State() == classifier.Idle
	cond := p.conditioner.Condition(rate, s.AccelY, idle, dt)
	res := p.classifier.Tick(cond, s.T, dt)

	if res.Stroke != nil {
		p.emitter.EmitStroke(*res.Stroke, res.Confidence)
	}
	if res.Changed {
		p.emitter.EmitState(res.State, res.Confidence, s.T)
	}
}

// RequestReset asks for a full reset: calibration, conditioning,
// classification and emitter state all return to their initial values at
// the next tick boundary. Safe to call from any goroutine; idempotent.
func (p *Pipeline) RequestReset() {
	p.reqMu.Lock()
	p.pendingReset = true
	p.pendingRecal = nil
	p.reqMu.Unlock()
}

// RequestRecalibration asks for a fresh calibration session in the given
// mode, applied at the next tick boundary. The completed profile stays in
// effect until the new session completes.
func (p *Pipeline) RequestRecalibration(mode calib.Mode) {
	p.reqMu.Lock()
	m := mode
	p.pendingRecal = &m
	p.reqMu.Unlock()
}

func (p *Pipeline) applyPending() {
	p.reqMu.Lock()
	reset := p.pendingReset
	recal := p.pendingRecal
	p.pendingReset = false
	p.pendingRecal = nil
	p.reqMu.Unlock()

	if reset {
		p.calibrator.Reset()
		p.conditioner.Reset()
		p.classifier.Reset()
		p.gestures.Reset()
		p.emitter.Reset()
		p.haveTick = false
	}
	if recal != nil {
		p.calibrator.StartSession(*recal)
	}
}

func (p *Pipeline) publishSnapshot() {
	snap := snapshot{
		state:       p.classifier.State().String(),
		confidence:  p.classifier.Confidence(),
		calibration: p.calibrator.State().String(),
		retries:     p.calibrator.Retries(),
	}
	p.snapMu.Lock()
	p.snap = snap
	p.snapMu.Unlock()
}

// Stats returns a snapshot of the counters and current state. Safe to
// call from any goroutine.
func (p *Pipeline) Stats() Stats {
	p.snapMu.RLock()
	snap := p.snap
	p.snapMu.RUnlock()
	if snap.calibration == "" {
		snap.state = classifier.Idle.String()
		snap.calibration = calib.Uncalibrated.String()
	}
	return Stats{
		Accepted:    p.validator.Accepted(),
		Dropped:     p.validator.Dropped(),
		Events:      p.emitter.Counts(),
		State:       snap.state,
		Confidence:  snap.confidence,
		Calibration: snap.calibration,
		Retries:     snap.retries,
	}
}
