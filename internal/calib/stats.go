// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calib

import (
	"math"

	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// Confidence floor; never hard zero unless the session errored out.
const confFloor = 0.05

// phaseStats summarizes one capture phase.
type phaseStats struct {
	Samples int
	Mean    sample.Vec3
	StdDev  sample.Vec3
}

func computeStats(values []sample.Vec3) phaseStats {
	n := len(values)
	if n == 0 {
		return phaseStats{}
	}
	var sx, sy, sz float64
	for _, v := range values {
		sx += v.X
		sy += v.Y
		sz += v.Z
	}
	mean := sample.Vec3{X: sx / float64(n), Y: sy / float64(n), Z: sz / float64(n)}

	var vx, vy, vz float64
	for _, v := range values {
		dx := v.X - mean.X
		dy := v.Y - mean.Y
		dz := v.Z - mean.Z
		vx += dx * dx
		vy += dy * dy
		vz += dz * dz
	}
	std := sample.Vec3{
		X: math.Sqrt(vx / float64(n)),
		Y: math.Sqrt(vy / float64(n)),
		Z: math.Sqrt(vz / float64(n)),
	}
	return phaseStats{Samples: n, Mean: mean, StdDev: std}
}

// stillnessConfidence maps the average per-axis standard deviation to [0,1].
// Thresholds scale with the session's stability threshold so the heuristic
// holds across sensor units.
func stillnessConfidence(std sample.Vec3, stabilityThreshold float64) float64 {
	good := stabilityThreshold / 3
	bad := stabilityThreshold * 1.5
	s := (std.X + std.Y + std.Z) / 3
	switch {
	case s <= good:
		return 1.0
	case s >= bad:
		return confFloor
	default:
		t := (s - good) / (bad - good)
		return clamp01(1.0 - 0.95*t)
	}
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
