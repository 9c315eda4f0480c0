package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// accelCountsPerG matches a ±2g accelerometer range (16384 counts per g),
// the range the wireless sensor ships with.
const accelCountsPerG = 16384.0

// Config holds the conditioning parameters.
type Config struct {
	// DeadZone clamps raw components below this magnitude to exactly zero
	// before smoothing, so quantization chatter never reads as motion.
	DeadZone float64

	// SmoothingFactor is the exponential smoothing alpha in (0,1].
	SmoothingFactor float64
	// TimeScaled rescales the alpha by elapsed tick duration so smoothing
	// behaves the same across sample rates. ReferenceDT is the tick length
	// at which SmoothingFactor applies as-is.
	TimeScaled  bool
	ReferenceDT time.Duration

	// DriftCorrection enables the idle baseline follow. Deployments whose
	// sensor lacks a usable accelerometer axis run with it off.
	DriftCorrection     bool
	IdleTimeout         time.Duration
	IdleFollowSmoothing float64

	// Weights combine the smoothed axes into the scalar decision input.
	Weights sample.Vec3
}

// Validate fails fast on a configuration the conditioner cannot run with.
func (c Config) Validate() error {
	if c.DeadZone < 0 {
		return fmt.Errorf("conditioner: dead zone must not be negative, got %g", c.DeadZone)
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("conditioner: smoothing factor must be in (0,1], got %g", c.SmoothingFactor)
	}
	if c.TimeScaled && c.ReferenceDT <= 0 {
		return fmt.Errorf("conditioner: time-scaled smoothing needs a positive reference dt, got %s", c.ReferenceDT)
	}
	if c.DriftCorrection {
		if c.IdleTimeout <= 0 {
			return fmt.Errorf("conditioner: drift correction needs a positive idle timeout, got %s", c.IdleTimeout)
		}
		if c.IdleFollowSmoothing <= 0 || c.IdleFollowSmoothing > 1 {
			return fmt.Errorf("conditioner: idle follow smoothing must be in (0,1], got %g", c.IdleFollowSmoothing)
		}
	}
	return nil
}

// Conditioned is the per-sample derived signal. It has no persistent
// identity; every tick recomputes it from the previous smoothed value.
type Conditioned struct {
	Raw      sample.Vec3
	Smoothed sample.Vec3
	Combined float64
}

// Conditioner applies deadzone suppression, exponential smoothing and idle
// drift correction to calibrated gyro readings.
type Conditioner struct {
	cfg Config

	smoothed sample.Vec3
	baseline sample.Vec3
	primed   bool

	idleFor  time.Duration
	tiltDeg  float64
	haveTilt bool
}

// New creates a conditioner.
func New(cfg Config) (*Conditioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Conditioner{cfg: cfg}, nil
}

// Condition processes one calibrated reading. idle is the classifier's
// current verdict; dt is the elapsed time since the previous tick.
func (c *Conditioner) Condition(raw sample.Vec3, accelY int32, idle bool, dt time.Duration) Conditioned {
	raw = raw.Sub(c.baseline)
	raw = c.applyDeadZone(raw)

	alpha := c.alpha(c.cfg.SmoothingFactor, dt)
	if !c.primed {
		c.smoothed = raw
		c.primed = true
	} else {
		c.smoothed = lerp(c.smoothed, raw, alpha)
	}

	c.followDrift(raw, accelY, idle, dt)

	return Conditioned{
		Raw:      raw,
		Smoothed: c.smoothed,
		Combined: c.cfg.Weights.X*math.Abs(c.smoothed.X) + c.cfg.Weights.Y*math.Abs(c.smoothed.Y) + c.cfg.Weights.Z*math.Abs(c.smoothed.Z),
	}
}

// Reset clears all smoothing state and the drift baseline.
func (c *Conditioner) Reset() {
	c.smoothed = sample.Vec3{}
	c.baseline = sample.Vec3{}
	c.primed = false
	c.idleFor = 0
	c.tiltDeg = 0
	c.haveTilt = false
}

// Baseline returns the accumulated drift baseline, for diagnostics.
func (c *Conditioner) Baseline() sample.Vec3 { return c.baseline }

func (c *Conditioner) applyDeadZone(v sample.Vec3) sample.Vec3 {
	if math.Abs(v.X) < c.cfg.DeadZone {
		v.X = 0
	}
	if math.Abs(v.Y) < c.cfg.DeadZone {
		v.Y = 0
	}
	if math.Abs(v.Z) < c.cfg.DeadZone {
		v.Z = 0
	}
	return v
}

// followDrift nudges the baseline toward the residual signal during long
// idle stretches, using the accelerometer tilt as the absolute reference:
// the follow only runs while the tilt estimate itself is steady, so real
// slow motion is never absorbed as drift.
func (c *Conditioner) followDrift(raw sample.Vec3, accelY int32, idle bool, dt time.Duration) {
	if !c.cfg.DriftCorrection {
		return
	}
	if !idle {
		c.idleFor = 0
		c.haveTilt = false
		return
	}
	c.idleFor += dt

	tilt := TiltEstimate(accelY)
	tiltSteady := c.haveTilt && math.Abs(tilt-c.tiltDeg) < 1.0
	c.tiltDeg = tilt
	c.haveTilt = true

	if c.idleFor < c.cfg.IdleTimeout || !tiltSteady {
		return
	}
	k := c.alpha(c.cfg.IdleFollowSmoothing, dt)
	c.baseline = lerp(c.baseline, c.baseline.Add(raw), k)
}

// alpha returns the effective smoothing factor for this tick. In the
// time-scaled variant the per-tick alpha is derived so that the decay per
// unit time matches the configured alpha at ReferenceDT.
func (c *Conditioner) alpha(base float64, dt time.Duration) float64 {
	if !c.cfg.TimeScaled || dt <= 0 {
		return base
	}
	ratio := dt.Seconds() / c.cfg.ReferenceDT.Seconds()
	return 1 - math.Pow(1-base, ratio)
}

// TiltEstimate converts the secondary accelerometer axis to an estimated
// tilt angle in degrees, clamped to ±1g before the asin.
func TiltEstimate(accelY int32) float64 {
	g := float64(accelY) / accelCountsPerG
	if g > 1 {
		g = 1
	} else if g < -1 {
		g = -1
	}
	return math.Asin(g) * 180.0 / math.Pi
}

func lerp(from, to sample.Vec3, t float64) sample.Vec3 {
	return sample.Vec3{
		X: from.X + (to.X-from.X)*t,
		Y: from.Y + (to.Y-from.Y)*t,
		Z: from.Z + (to.Z-from.Z)*t,
	}
}
