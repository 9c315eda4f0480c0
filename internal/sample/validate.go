package sample

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMalformed marks a sample rejected at the pipeline boundary.
var ErrMalformed = errors.New("malformed sample")

// Validator rejects malformed or out-of-range samples before they reach any
// stateful component. Rejections are counted, not propagated as failures.
type Validator struct {
	maxRate  float64 // per-axis angular rate bound, sensor units
	maxAccel int32   // accelerometer count bound (symmetric)

	accepted atomic.Uint64
	dropped  atomic.Uint64

	mu    sync.Mutex
	lastT time.Time
}

// NewValidator creates a validator with the given per-axis bounds.
// A zero bound disables that check.
func NewValidator(maxRate float64, maxAccel int32) *Validator {
	return &Validator{maxRate: maxRate, maxAccel: maxAccel}
}

// Check validates s. It returns an error wrapping ErrMalformed when the
// sample must be dropped; the caller treats that as "no new information".
func (v *Validator) Check(s SensorSample) error {
	if err := v.check(s); err != nil {
		v.dropped.Add(1)
		return err
	}
	v.accepted.Add(1)
	return nil
}

func (v *Validator) check(s SensorSample) error {
	if s.T.IsZero() {
		return fmt.Errorf("%w: zero timestamp", ErrMalformed)
	}
	if !s.Gyro.IsFinite() {
		return fmt.Errorf("%w: non-finite gyro reading", ErrMalformed)
	}
	if v.maxRate > 0 {
		for _, c := range [3]float64{s.Gyro.X, s.Gyro.Y, s.Gyro.Z} {
			if c > v.maxRate || c < -v.maxRate {
				return fmt.Errorf("%w: gyro component %.1f exceeds ±%.1f", ErrMalformed, c, v.maxRate)
			}
		}
	}
	if v.maxAccel > 0 && (s.AccelY > v.maxAccel || s.AccelY < -v.maxAccel) {
		return fmt.Errorf("%w: accel %d exceeds ±%d", ErrMalformed, s.AccelY, v.maxAccel)
	}

	// Out-of-order samples would corrupt the stability and pattern windows.
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.lastT.IsZero() && s.T.Before(v.lastT) {
		return fmt.Errorf("%w: timestamp %s older than last accepted %s", ErrMalformed, s.T, v.lastT)
	}
	v.lastT = s.T
	return nil
}

// Accepted returns the number of samples that passed validation.
func (v *Validator) Accepted() uint64 { return v.accepted.Load() }

// Dropped returns the number of samples rejected at the boundary.
func (v *Validator) Dropped() uint64 { return v.dropped.Load() }
