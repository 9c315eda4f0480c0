package app

import (
	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/classifier"
	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/gesture"
	"github.com/relabs-tech/paddle_helm/internal/pipeline"
	"github.com/relabs-tech/paddle_helm/internal/sample"
	"github.com/relabs-tech/paddle_helm/internal/signal"
)

// PipelineConfig maps the flat file configuration onto the component
// configurations. Validation happens in each component's constructor.
func PipelineConfig(cfg *config.Config) pipeline.Config {
	mode := calib.ZeroPoint
	if cfg.CalibMode == "three_point" {
		mode = calib.ThreePoint
	}
	return pipeline.Config{
		Calib: calib.Config{
			Mode:               mode,
			RequiredSamples:    cfg.CalibRequiredSamples,
			MinSamples:         cfg.CalibMinSamples,
			StabilityThreshold: cfg.CalibStabilityThreshold,
			SessionTimeout:     config.Duration(cfg.CalibSessionTimeoutMS),
			SettleDelay:        config.Duration(cfg.CalibSettleDelayMS),
			RetryDelay:         config.Duration(cfg.CalibRetryDelayMS),
			MaxRetries:         cfg.CalibMaxRetries,
		},
		Signal: signal.Config{
			DeadZone:            cfg.DeadZone,
			SmoothingFactor:     cfg.SmoothingFactor,
			TimeScaled:          cfg.SmoothingTimeScaled,
			ReferenceDT:         config.Duration(cfg.SampleIntervalMS),
			DriftCorrection:     cfg.DriftCorrection,
			IdleTimeout:         config.Duration(cfg.IdleTimeoutMS),
			IdleFollowSmoothing: cfg.IdleFollowSmoothing,
			Weights:             sample.Vec3{X: cfg.AxisWeightX, Y: cfg.AxisWeightY, Z: cfg.AxisWeightZ},
		},
		Classifier: classifier.Config{
			IdleThreshold:         cfg.IdleThreshold,
			IdleTimeout:           config.Duration(cfg.IdleTimeoutMS),
			TurnThreshold:         cfg.TurnThreshold,
			TurnStabilityTime:     config.Duration(cfg.TurnStabilityTimeMS),
			StrokeThreshold:       cfg.StrokeThreshold,
			StrokeCooldown:        config.Duration(cfg.StrokeCooldownMS),
			ConsecutiveWindow:     config.Duration(cfg.ConsecutiveWindowMS),
			AlternatingWindow:     config.Duration(cfg.AlternatingWindowMS),
			MinAlternatingStrokes: cfg.MinAlternatingStrokes,
		},
		Gesture: gesture.Config{
			StartThreshold:   int32(cfg.GestureStartThreshold),
			RestartThreshold: int32(cfg.GestureRestartThreshold),
			Cooldown:         config.Duration(cfg.GestureCooldownMS),
		},
		MaxRate:   cfg.MaxGyroRate,
		MaxAccel:  int32(cfg.MaxAccelY),
		QueueSize: cfg.SampleQueue,
	}
}
