// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// Mode selects the calibration procedure.
type Mode int

const (
	// ZeroPoint captures the zero-rate gyro bias from a single still phase.
	ZeroPoint Mode = iota
	// ThreePoint runs neutral, left-tilt and right-tilt phases; the offset
	// comes from neutral and the tilt phases yield a per-axis sensitivity
	// estimate kept for diagnostics only.
	ThreePoint
)

func (m Mode) String() string {
	switch m {
	case ZeroPoint:
		return "zero_point"
	case ThreePoint:
		return "three_point"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a config value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "zero_point", "zero":
		return ZeroPoint, nil
	case "three_point", "three":
		return ThreePoint, nil
	default:
		return 0, fmt.Errorf("unknown calibration mode %q", s)
	}
}

// Profile is the result of a completed calibration session. It is replaced
// wholesale by a new session, never mutated in place.
type Profile struct {
	SchemaVersion int       `json:"schema_version"`
	CalibratedAt  time.Time `json:"calibrated_at"`
	Mode          Mode      `json:"mode"`

	// Offset is subtracted from every raw gyro reading.
	Offset sample.Vec3 `json:"offset"`

	// Points holds the neutral/left/right phase means (three-point only).
	Points *[3]sample.Vec3 `json:"points,omitempty"`

	// Sensitivity is the estimated per-axis response from the tilt phases.
	// Diagnostic only; it does not correct classifier thresholds.
	Sensitivity *sample.Vec3 `json:"sensitivity,omitempty"`

	Samples    int         `json:"samples"`
	StdDev     sample.Vec3 `json:"stddev"`
	Confidence float64     `json:"confidence"`
}

// Apply returns the calibrated reading for a raw gyro vector.
func (p Profile) Apply(v sample.Vec3) sample.Vec3 {
	return v.Sub(p.Offset)
}

// Save writes the profile as indented JSON.
func (p Profile) Save(path string) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calibration profile: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write calibration profile: %w", err)
	}
	return nil
}

// LoadProfile reads a previously saved profile.
func LoadProfile(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read calibration profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("parse calibration profile: %w", err)
	}
	return p, nil
}
