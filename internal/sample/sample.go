package sample

import (
	"math"
	"time"
)

// Vec3 is a three-axis angular rate in sensor units (deg/s-like).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vec3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// IsFinite reports whether all components are finite numbers.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// SensorSample is one decoded reading from the wireless sensor: three-axis
// angular rate plus the secondary accelerometer axis used for gestures and
// drift correction. Samples are immutable and consumed once.
type SensorSample struct {
	Gyro   Vec3      `json:"gyro"`
	AccelY int32     `json:"accel_y"`
	T      time.Time `json:"t"`
}

// Source is anything that can provide sensor samples over time.
type Source interface {
	Next() (SensorSample, error)
}
