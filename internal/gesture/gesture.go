package gesture

import (
	"fmt"
	"time"
)

// Event is a transient gesture detected on the accelerometer axis.
type Event int

const (
	None Event = iota
	StartGame
	RestartGame
)

func (e Event) String() string {
	switch e {
	case StartGame:
		return "start_game"
	case RestartGame:
		return "restart_game"
	default:
		return "none"
	}
}

// Config holds the spike thresholds and the shared cooldown.
type Config struct {
	// StartThreshold fires StartGame when accelY exceeds it.
	StartThreshold int32
	// RestartThreshold fires RestartGame when accelY drops below it.
	// It is a large-magnitude negative value.
	RestartThreshold int32
	// Cooldown is shared by both gestures so one physical jolt cannot
	// emit both or repeat.
	Cooldown time.Duration
}

// Validate fails fast on thresholds that could never separate the two
// gestures.
func (c Config) Validate() error {
	if c.StartThreshold <= 0 {
		return fmt.Errorf("gesture: start threshold must be positive, got %d", c.StartThreshold)
	}
	if c.RestartThreshold >= 0 {
		return fmt.Errorf("gesture: restart threshold must be negative, got %d", c.RestartThreshold)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("gesture: cooldown must be positive, got %s", c.Cooldown)
	}
	return nil
}

// Detector is a threshold test run every tick, independent of the pattern
// classifier. It holds no state beyond the cooldown countdown.
type Detector struct {
	cfg      Config
	cooldown time.Duration
}

// New creates a detector.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Tick evaluates one sample. It returns None while the cooldown runs.
func (d *Detector) Tick(accelY int32, dt time.Duration) Event {
	if d.cooldown > 0 {
		d.cooldown -= dt
		if d.cooldown < 0 {
			d.cooldown = 0
		}
		return None
	}
	switch {
	case accelY > d.cfg.StartThreshold:
		d.cooldown = d.cfg.Cooldown
		return StartGame
	case accelY < d.cfg.RestartThreshold:
		d.cooldown = d.cfg.Cooldown
		return RestartGame
	default:
		return None
	}
}

// Reset clears the cooldown.
func (d *Detector) Reset() {
	d.cooldown = 0
}
