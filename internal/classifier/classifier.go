package classifier

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/signal"
)

// State is the classifier's movement verdict.
type State int

const (
	Idle State = iota
	Forward
	TurnLeft
	TurnRight
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Forward:
		return "forward"
	case TurnLeft:
		return "turn_left"
	case TurnRight:
		return "turn_right"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Direction is the side of a discrete stroke.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// Stroke is one discrete paddle motion crossing the stroke threshold.
type Stroke struct {
	Direction Direction
	At        time.Time
	Intensity float64
}

// Config holds every classification threshold. All timers are durations,
// evaluated against elapsed time, never tick counts.
type Config struct {
	// IdleThreshold forces Idle when the combined movement drops below it.
	IdleThreshold float64
	// IdleTimeout is how long idle must persist before the stroke history
	// is cleared. Single-tick dips never destroy history.
	IdleTimeout time.Duration

	// TurnThreshold and TurnStabilityTime gate the sustained-turn rule:
	// the turn axis must hold one sign above the threshold continuously.
	TurnThreshold     float64
	TurnStabilityTime time.Duration

	// StrokeThreshold triggers discrete stroke recording; StrokeCooldown
	// is the per-direction re-trigger suppression.
	StrokeThreshold float64
	StrokeCooldown  time.Duration

	// ConsecutiveWindow bounds the double-stroke turn shortcut.
	ConsecutiveWindow time.Duration

	// AlternatingWindow and MinAlternatingStrokes gate the forward rule.
	AlternatingWindow     time.Duration
	MinAlternatingStrokes int
}

// Validate fails fast on thresholds the state machine cannot run with.
func (c Config) Validate() error {
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("classifier: idle threshold must be positive, got %g", c.IdleThreshold)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("classifier: idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.TurnThreshold <= 0 {
		return fmt.Errorf("classifier: turn threshold must be positive, got %g", c.TurnThreshold)
	}
	if c.TurnStabilityTime <= 0 {
		return fmt.Errorf("classifier: turn stability time must be positive, got %s", c.TurnStabilityTime)
	}
	if c.StrokeThreshold <= 0 {
		return fmt.Errorf("classifier: stroke threshold must be positive, got %g", c.StrokeThreshold)
	}
	if c.StrokeCooldown <= 0 {
		return fmt.Errorf("classifier: stroke cooldown must be positive, got %s", c.StrokeCooldown)
	}
	if c.ConsecutiveWindow <= 0 {
		return fmt.Errorf("classifier: consecutive window must be positive, got %s", c.ConsecutiveWindow)
	}
	if c.AlternatingWindow <= 0 {
		return fmt.Errorf("classifier: alternating window must be positive, got %s", c.AlternatingWindow)
	}
	if c.MinAlternatingStrokes < 2 {
		return fmt.Errorf("classifier: min alternating strokes must be at least 2, got %d", c.MinAlternatingStrokes)
	}
	return nil
}

// Result is one tick's outcome.
type Result struct {
	State      State
	Changed    bool
	Confidence float64
	// Stroke carries the stroke recorded this tick, if any.
	Stroke *Stroke
}

// Classifier is the movement state machine. Rules are evaluated in fixed
// priority order: dead zone, sustained turn, double-stroke turn,
// alternating-pattern forward, hold.
type Classifier struct {
	cfg Config

	state   State
	idleFor time.Duration

	turnSign      int
	turnStableFor time.Duration

	leftCooldown  time.Duration
	rightCooldown time.Duration
	overThreshold bool

	lastStrokeDir Direction
	lastStrokeAt  time.Time
	haveStroke    bool
	consecutive   int

	history *strokeHistory

	confidence float64
}

// New creates a classifier in the Idle state.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		cfg:     cfg,
		state:   Idle,
		history: newStrokeHistory(2 * cfg.AlternatingWindow),
	}, nil
}

// State returns the current state.
func (c *Classifier) State() State { return c.state }

// Confidence returns the diagnostic certainty of the current state.
func (c *Classifier) Confidence() float64 { return c.confidence }

// Reset returns the classifier to Idle and clears all timers and history.
func (c *Classifier) Reset() {
	c.state = Idle
	c.idleFor = 0
	c.turnSign = 0
	c.turnStableFor = 0
	c.leftCooldown = 0
	c.rightCooldown = 0
	c.overThreshold = false
	c.haveStroke = false
	c.consecutive = 0
	c.history.clear()
	c.confidence = 0
}

// Tick advances the state machine by one conditioned sample.
func (c *Classifier) Tick(sig signal.Conditioned, now time.Time, dt time.Duration) Result {
	prev := c.state

	c.leftCooldown = decay(c.leftCooldown, dt)
	c.rightCooldown = decay(c.rightCooldown, dt)
	c.history.purge(now)

	// Rule 1: dead zone. Idle wins over everything else this tick. The
	// stroke history survives brief dips and is only cleared once idle has
	// persisted past the timeout.
	if sig.Combined < c.cfg.IdleThreshold {
		c.idleFor += dt
		c.turnSign = 0
		c.turnStableFor = 0
		c.overThreshold = false
		if c.idleFor >= c.cfg.IdleTimeout {
			c.history.clear()
			c.consecutive = 0
			c.haveStroke = false
		}
		c.state = Idle
		c.confidence = c.deriveConfidence(sig, now)
		return Result{State: c.state, Changed: c.state != prev, Confidence: c.confidence}
	}
	c.idleFor = 0

	axis := sig.Smoothed.X
	stroke := c.recordStroke(axis, now)

	// Rule 2: sustained turn. The sign must hold above the threshold for
	// the whole stability window; a flip restarts the timer. Until the
	// window elapses the previous non-idle state is held, no flicker.
	if next, ok := c.sustainedTurn(axis, dt); ok {
		c.state = next
	} else if next, ok := c.doubleStrokeTurn(stroke, now); ok {
		// Rule 3: two consecutive same-direction strokes inside the
		// window read as a turn without waiting for continuous tilt.
		c.state = next
	} else if c.alternatingForward(now) {
		// Rule 4: a strictly alternating run inside the window reads as
		// forward propulsion. History is cleared so the same strokes
		// cannot re-trigger.
		c.state = Forward
		c.history.clear()
		c.consecutive = 0
	}
	// Rule 5: otherwise the current state is retained.

	c.confidence = c.deriveConfidence(sig, now)
	return Result{State: c.state, Changed: c.state != prev, Confidence: c.confidence, Stroke: stroke}
}

// recordStroke detects a threshold crossing of the turn axis and records a
// stroke when that direction's cooldown has elapsed. Crossings are
// edge-triggered: the axis must leave the band before it can fire again.
func (c *Classifier) recordStroke(axis float64, now time.Time) *Stroke {
	if math.Abs(axis) < c.cfg.StrokeThreshold {
		c.overThreshold = false
		return nil
	}
	if c.overThreshold {
		return nil
	}
	c.overThreshold = true

	dir := Right
	if axis < 0 {
		dir = Left
	}
	if dir == Left && c.leftCooldown > 0 {
		return nil
	}
	if dir == Right && c.rightCooldown > 0 {
		return nil
	}

	s := Stroke{Direction: dir, At: now, Intensity: math.Abs(axis)}
	c.history.push(s)
	if dir == Left {
		c.leftCooldown = c.cfg.StrokeCooldown
	} else {
		c.rightCooldown = c.cfg.StrokeCooldown
	}

	if c.haveStroke && dir == c.lastStrokeDir && now.Sub(c.lastStrokeAt) <= c.cfg.ConsecutiveWindow {
		c.consecutive++
	} else {
		c.consecutive = 1
	}
	c.lastStrokeDir = dir
	c.lastStrokeAt = now
	c.haveStroke = true
	return &s
}

func (c *Classifier) sustainedTurn(axis float64, dt time.Duration) (State, bool) {
	if math.Abs(axis) < c.cfg.TurnThreshold {
		c.turnSign = 0
		c.turnStableFor = 0
		return Idle, false
	}
	sign := 1
	if axis < 0 {
		sign = -1
	}
	if sign != c.turnSign {
		c.turnSign = sign
		c.turnStableFor = 0
		return Idle, false
	}
	c.turnStableFor += dt
	if c.turnStableFor < c.cfg.TurnStabilityTime {
		return Idle, false
	}
	if sign < 0 {
		return TurnLeft, true
	}
	return TurnRight, true
}

func (c *Classifier) doubleStrokeTurn(stroke *Stroke, now time.Time) (State, bool) {
	if stroke == nil || c.consecutive < 2 {
		return Idle, false
	}
	if stroke.Direction == Left {
		return TurnLeft, true
	}
	return TurnRight, true
}

// alternatingForward scans the history restricted to the alternating
// window: enough strokes, strictly alternating in time order.
func (c *Classifier) alternatingForward(now time.Time) bool {
	recent := c.history.since(now.Add(-c.cfg.AlternatingWindow))
	if len(recent) < c.cfg.MinAlternatingStrokes {
		return false
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Direction == recent[i-1].Direction {
			return false
		}
	}
	return true
}

// deriveConfidence is a diagnostic score, never a transition input. It
// weighs signal intensity, pattern consistency and stroke recency.
func (c *Classifier) deriveConfidence(sig signal.Conditioned, now time.Time) float64 {
	intensity := clamp01(sig.Combined / (2 * c.cfg.TurnThreshold))

	consistency := 0.0
	recent := c.history.since(now.Add(-c.cfg.AlternatingWindow))
	if len(recent) > 1 {
		alternations := 0
		for i := 1; i < len(recent); i++ {
			if recent[i].Direction != recent[i-1].Direction {
				alternations++
			}
		}
		consistency = float64(alternations) / float64(len(recent)-1)
	}

	recency := 0.0
	if c.haveStroke {
		age := now.Sub(c.lastStrokeAt)
		if age < c.cfg.AlternatingWindow {
			recency = 1 - age.Seconds()/c.cfg.AlternatingWindow.Seconds()
		}
	}

	if c.state == Idle {
		// An idle verdict is certain exactly when the signal is quiet.
		return clamp01(1 - intensity)
	}
	return clamp01(0.5*intensity + 0.3*consistency + 0.2*recency)
}

func decay(cd, dt time.Duration) time.Duration {
	cd -= dt
	if cd < 0 {
		return 0
	}
	return cd
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
