package app

import "testing"

func TestParseSensorLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"valid", "1.5,-2.25,0.0,12000", true},
		{"valid-with-spaces", " 1.5 , -2.25 , 0.0 , 12000 ", true},
		{"negative-accel", "0,0,0,-32768", true},
		{"empty", "", false},
		{"too-few-fields", "1.5,2.5,3.5", false},
		{"too-many-fields", "1,2,3,4,5", false},
		{"non-numeric-gyro", "x,2,3,4", false},
		{"float-accel", "1,2,3,4.5", false},
		{"accel-overflow", "1,2,3,3000000000", false},
		{"partial-line", "5,0.0,12000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSensorLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseSensorLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && got.T.IsZero() {
				t.Error("parsed sample has no timestamp")
			}
		})
	}
}

func TestParseSensorLineValues(t *testing.T) {
	s, ok := parseSensorLine("1.5,-2.25,0.75,12000")
	if !ok {
		t.Fatal("parse failed")
	}
	if s.Gyro.X != 1.5 || s.Gyro.Y != -2.25 || s.Gyro.Z != 0.75 {
		t.Errorf("gyro = %+v", s.Gyro)
	}
	if s.AccelY != 12000 {
		t.Errorf("accelY = %d, want 12000", s.AccelY)
	}
}
