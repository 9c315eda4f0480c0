// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"fmt"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// State is the calibration lifecycle.
type State int

const (
	Uncalibrated State = iota
	Calibrating
	Calibrated
	Failed
)

func (s State) String() string {
	switch s {
	case Uncalibrated:
		return "uncalibrated"
	case Calibrating:
		return "calibrating"
	case Calibrated:
		return "calibrated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the calibration session parameters.
type Config struct {
	Mode Mode

	// RequiredSamples stable samples complete a phase.
	RequiredSamples int
	// MinSamples is the floor below which a timed-out phase fails.
	MinSamples int
	// StabilityThreshold rejects samples whose gyro magnitude exceeds it.
	// Rejection, not the passage of time, is what "stability" means here.
	StabilityThreshold float64

	SessionTimeout time.Duration
	// SettleDelay is the pause before each three-point phase collects.
	SettleDelay time.Duration

	RetryDelay time.Duration
	MaxRetries int
}

// Validate fails fast on parameters no session could complete with.
func (c Config) Validate() error {
	if c.RequiredSamples <= 0 {
		return fmt.Errorf("calibration: required samples must be positive, got %d", c.RequiredSamples)
	}
	if c.MinSamples <= 0 || c.MinSamples > c.RequiredSamples {
		return fmt.Errorf("calibration: min samples must be in [1, %d], got %d", c.RequiredSamples, c.MinSamples)
	}
	if c.StabilityThreshold <= 0 {
		return fmt.Errorf("calibration: stability threshold must be positive, got %g", c.StabilityThreshold)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("calibration: session timeout must be positive, got %s", c.SessionTimeout)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("calibration: retry delay must not be negative, got %s", c.RetryDelay)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("calibration: max retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// Progress reports the session state back to the caller after each sample.
type Progress struct {
	State       State
	Mode        Mode
	Phase       int
	PhaseTotal  int
	Instruction string
	Settling    bool
	Collected   int
	Required    int
	Rejected    int
	Retries     int
}

var threePointInstructions = [3]string{
	"hold the paddle level and keep it still",
	"tilt the paddle left and hold",
	"tilt the paddle right and hold",
}

// Calibrator owns the calibration lifecycle and the completed profile.
// Sessions span many ticks; all timing derives from sample timestamps so
// behavior is independent of the delivery rate.
type Calibrator struct {
	cfg     Config
	state   State
	profile *Profile

	mode        Mode
	phase       int
	phaseStart  time.Time
	settleUntil time.Time
	buf         []sample.Vec3
	rejected    int
	phases      [3]phaseStats

	settling bool

	retries int
	retryAt time.Time
}

// New creates a calibrator. The configuration is validated once here;
// invalid thresholds are a construction failure, never clamped.
func New(cfg Config) (*Calibrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calibrator{cfg: cfg, state: Uncalibrated, mode: cfg.Mode}, nil
}

// StartSession begins a new session in the given mode. Any in-progress
// session is abandoned; a previously completed profile stays untouched
// until the new session completes.
func (c *Calibrator) StartSession(mode Mode) {
	c.mode = mode
	c.state = Calibrating
	c.phase = 0
	c.phaseStart = time.Time{}
	c.settleUntil = time.Time{}
	c.buf = c.buf[:0]
	c.rejected = 0
	c.phases = [3]phaseStats{}
	c.settling = false
	c.retryAt = time.Time{}
}

// Feed advances the session with one sample and reports progress.
// Outside a session it is a no-op beyond the automatic failure retry.
func (c *Calibrator) Feed(s sample.SensorSample) Progress {
	if c.state == Failed && !c.retryAt.IsZero() && !s.T.Before(c.retryAt) {
		c.StartSession(c.mode)
	}
	if c.state != Calibrating {
		return c.progress()
	}

	if c.phaseStart.IsZero() {
		c.phaseStart = s.T
		if c.mode == ThreePoint && c.cfg.SettleDelay > 0 {
			c.settleUntil = s.T.Add(c.cfg.SettleDelay)
		}
	}

	c.settling = s.T.Before(c.settleUntil)
	switch {
	case c.settling:
		// Operator is still moving into position.
	case s.Gyro.Magnitude() > c.cfg.StabilityThreshold:
		c.rejected++
	default:
		c.buf = append(c.buf, s.Gyro)
	}

	if len(c.buf) >= c.cfg.RequiredSamples {
		c.finishPhase(s.T)
	} else if s.T.Sub(c.phaseStart) >= c.cfg.SessionTimeout {
		if len(c.buf) >= c.cfg.MinSamples {
			c.finishPhase(s.T)
		} else {
			c.fail(s.T)
		}
	}
	return c.progress()
}

// ForceFinish completes the current phase with whatever is buffered.
// An empty buffer fails the session immediately, without automatic retry.
func (c *Calibrator) ForceFinish() {
	if c.state != Calibrating {
		return
	}
	if len(c.buf) == 0 {
		c.state = Failed
		c.retryAt = time.Time{}
		return
	}
	at := c.phaseStart.Add(c.cfg.SessionTimeout)
	c.finishPhase(at)
}

// Abort abandons an in-progress session. A previously completed profile
// is unaffected.
func (c *Calibrator) Abort() {
	if c.state != Calibrating {
		return
	}
	if c.profile != nil {
		c.state = Calibrated
	} else {
		c.state = Uncalibrated
	}
	c.buf = c.buf[:0]
	c.retryAt = time.Time{}
}

// Reset returns the calibrator to Uncalibrated, dropping any profile and
// in-progress session. Calling it twice is the same as calling it once.
func (c *Calibrator) Reset() {
	c.state = Uncalibrated
	c.profile = nil
	c.buf = c.buf[:0]
	c.rejected = 0
	c.phase = 0
	c.phaseStart = time.Time{}
	c.settleUntil = time.Time{}
	c.retries = 0
	c.retryAt = time.Time{}
}

// Restore installs a previously saved profile.
func (c *Calibrator) Restore(p Profile) {
	cp := p
	c.profile = &cp
	c.state = Calibrated
}

// State returns the lifecycle state.
func (c *Calibrator) State() State { return c.state }

// Retries returns how many automatic restarts failures have consumed.
func (c *Calibrator) Retries() int { return c.retries }

// Profile returns the completed profile, if any.
func (c *Calibrator) Profile() (Profile, bool) {
	if c.profile == nil {
		return Profile{}, false
	}
	return *c.profile, true
}

// Apply returns the calibrated gyro reading. The second result is false
// while no completed profile exists; such readings are uncalibrated and
// must not drive classification.
func (c *Calibrator) Apply(v sample.Vec3) (sample.Vec3, bool) {
	if c.state != Calibrated || c.profile == nil {
		return v, false
	}
	return c.profile.Apply(v), true
}

func (c *Calibrator) finishPhase(at time.Time) {
	st := computeStats(c.buf)
	if c.mode == ZeroPoint {
		c.complete(at, st, nil)
		return
	}

	c.phases[c.phase] = st
	c.phase++
	if c.phase < 3 {
		c.buf = c.buf[:0]
		c.phaseStart = time.Time{}
		c.settleUntil = time.Time{}
		return
	}
	c.complete(at, c.phases[0], &c.phases)
}

// complete replaces the profile wholesale; the old one is never mutated.
func (c *Calibrator) complete(at time.Time, neutral phaseStats, phases *[3]phaseStats) {
	p := Profile{
		SchemaVersion: 1,
		CalibratedAt:  at,
		Mode:          c.mode,
		Offset:        neutral.Mean,
		Samples:       neutral.Samples,
		StdDev:        neutral.StdDev,
		Confidence:    stillnessConfidence(neutral.StdDev, c.cfg.StabilityThreshold),
	}
	if phases != nil {
		pts := [3]sample.Vec3{phases[0].Mean, phases[1].Mean, phases[2].Mean}
		p.Points = &pts
		left := phases[1].Mean.Sub(phases[0].Mean)
		right := phases[2].Mean.Sub(phases[0].Mean)
		sens := sample.Vec3{
			X: (abs(left.X) + abs(right.X)) / 2,
			Y: (abs(left.Y) + abs(right.Y)) / 2,
			Z: (abs(left.Z) + abs(right.Z)) / 2,
		}
		p.Sensitivity = &sens
	}
	c.profile = &p
	c.state = Calibrated
	c.retries = 0
	c.retryAt = time.Time{}
	c.buf = c.buf[:0]
}

func (c *Calibrator) fail(at time.Time) {
	c.state = Failed
	c.buf = c.buf[:0]
	c.phaseStart = time.Time{}
	c.settleUntil = time.Time{}
	c.phase = 0
	if c.retries < c.cfg.MaxRetries {
		c.retries++
		c.retryAt = at.Add(c.cfg.RetryDelay)
	} else {
		// Retry budget exhausted; the failure stands until the caller
		// intervenes with StartSession or Reset.
		c.retryAt = time.Time{}
	}
}

// Snapshot reports session progress without feeding a sample. Not safe
// for concurrent use with Feed; callers serialize externally.
func (c *Calibrator) Snapshot() Progress {
	return c.progress()
}

func (c *Calibrator) progress() Progress {
	p := Progress{
		State:     c.state,
		Mode:      c.mode,
		Phase:     c.phase,
		Collected: len(c.buf),
		Required:  c.cfg.RequiredSamples,
		Rejected:  c.rejected,
		Retries:   c.retries,
	}
	if c.mode == ThreePoint {
		p.PhaseTotal = 3
		if c.phase < 3 {
			p.Instruction = threePointInstructions[c.phase]
		}
		p.Settling = c.state == Calibrating && c.settling
	} else {
		p.PhaseTotal = 1
		p.Instruction = "keep the paddle still"
	}
	return p
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
