package app

import (
	"testing"
	"time"

	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/pipeline"
)

func TestPipelineConfigFromDefaults(t *testing.T) {
	cfg := config.Default()
	pc := PipelineConfig(cfg)

	// The defaults must construct a working pipeline as-is.
	if _, err := pipeline.New(pc, nil); err != nil {
		t.Fatalf("pipeline.New with default config: %v", err)
	}

	if pc.Classifier.TurnStabilityTime != 2*time.Second {
		t.Errorf("turn stability = %s, want 2s from TURN_STABILITY_TIME default", pc.Classifier.TurnStabilityTime)
	}
	if pc.Gesture.RestartThreshold >= 0 {
		t.Errorf("restart threshold = %d, want negative", pc.Gesture.RestartThreshold)
	}
	if pc.Signal.ReferenceDT != config.Duration(cfg.SampleIntervalMS) {
		t.Errorf("reference dt = %s, want the sample interval", pc.Signal.ReferenceDT)
	}
}

func TestPipelineConfigCalibMode(t *testing.T) {
	cfg := config.Default()

	cfg.CalibMode = "zero_point"
	if got := PipelineConfig(cfg).Calib.Mode; got != calib.ZeroPoint {
		t.Errorf("mode = %v, want ZeroPoint", got)
	}
	cfg.CalibMode = "three_point"
	if got := PipelineConfig(cfg).Calib.Mode; got != calib.ThreePoint {
		t.Errorf("mode = %v, want ThreePoint", got)
	}
}
