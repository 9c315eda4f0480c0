package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDHelm    string
	MQTTClientIDSensor  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTClientIDDisplay string
	MQTTClientIDGPS     string

	// Topics
	TopicSamples  string
	TopicEvents   string
	TopicState    string
	TopicProgress string
	TopicGPS      string

	// Sensor transport
	SensorSerialPort string
	SensorBaudRate   int
	GPSSerialPort    string
	GPSBaudRate      int

	// Direct IMU source (deployments without the wireless receiver)
	IMUSPIDevice string
	IMUCSPin     string

	// Timing
	SampleIntervalMS int

	// Signal conditioning
	DeadZone            float64
	SmoothingFactor     float64
	SmoothingTimeScaled bool
	IdleFollowSmoothing float64
	DriftCorrection     bool
	AxisWeightX         float64
	AxisWeightY         float64
	AxisWeightZ         float64

	// Classification
	IdleThreshold         float64
	IdleTimeoutMS         int
	TurnThreshold         float64
	TurnStabilityTimeMS   int
	StrokeThreshold       float64
	StrokeCooldownMS      int
	ConsecutiveWindowMS   int
	AlternatingWindowMS   int
	MinAlternatingStrokes int

	// Gestures
	GestureStartThreshold   int
	GestureRestartThreshold int
	GestureCooldownMS       int

	// Calibration
	CalibMode               string
	CalibRequiredSamples    int
	CalibMinSamples         int
	CalibStabilityThreshold float64
	CalibSessionTimeoutMS   int
	CalibSettleDelayMS      int
	CalibRetryDelayMS       int
	CalibMaxRetries         int
	CalibProfilePath        string

	// Sample bounds
	MaxGyroRate float64
	MaxAccelY   int
	SampleQueue int

	// Web server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for the singleton accessor. External
// code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a configuration with working thresholds; transport
// fields still have to come from the config file.
func Default() *Config {
	return &Config{
		TopicSamples:  "helm/samples",
		TopicEvents:   "helm/events",
		TopicState:    "helm/state",
		TopicProgress: "helm/calibration/progress",
		TopicGPS:      "helm/gps",

		SampleIntervalMS: 20,

		DeadZone:            1.5,
		SmoothingFactor:     0.3,
		SmoothingTimeScaled: true,
		IdleFollowSmoothing: 0.05,
		DriftCorrection:     true,
		AxisWeightX:         1.0,
		AxisWeightY:         0.5,
		AxisWeightZ:         0.5,

		IdleThreshold:         5.0,
		IdleTimeoutMS:         1500,
		TurnThreshold:         15.0,
		TurnStabilityTimeMS:   2000,
		StrokeThreshold:       25.0,
		StrokeCooldownMS:      400,
		ConsecutiveWindowMS:   1200,
		AlternatingWindowMS:   3000,
		MinAlternatingStrokes: 4,

		GestureStartThreshold:   8000,
		GestureRestartThreshold: -8000,
		GestureCooldownMS:       1500,

		CalibMode:               "zero_point",
		CalibRequiredSamples:    50,
		CalibMinSamples:         20,
		CalibStabilityThreshold: 3.0,
		CalibSessionTimeoutMS:   10000,
		CalibSettleDelayMS:      2000,
		CalibRetryDelayMS:       1000,
		CalibMaxRetries:         1,
		CalibProfilePath:        "helm_calibration.json",

		MaxGyroRate: 2000,
		MaxAccelY:   32767,
		SampleQueue: 256,

		WebServerPort:         8080,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file over the defaults and validates it.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_HELM":
		c.MQTTClientIDHelm = value
	case "MQTT_CLIENT_ID_SENSOR":
		c.MQTTClientIDSensor = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_PROGRESS":
		c.TopicProgress = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Sensor transport
	case "SENSOR_SERIAL_PORT":
		c.SensorSerialPort = value
	case "SENSOR_BAUD_RATE":
		return setInt(&c.SensorBaudRate, key, value)
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		return setInt(&c.GPSBaudRate, key, value)
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// Timing
	case "SAMPLE_INTERVAL":
		return setInt(&c.SampleIntervalMS, key, value)

	// Signal conditioning
	case "DEAD_ZONE":
		return setFloat(&c.DeadZone, key, value)
	case "SMOOTHING_FACTOR":
		return setFloat(&c.SmoothingFactor, key, value)
	case "SMOOTHING_TIME_SCALED":
		return setBool(&c.SmoothingTimeScaled, key, value)
	case "IDLE_FOLLOW_SMOOTHING":
		return setFloat(&c.IdleFollowSmoothing, key, value)
	case "DRIFT_CORRECTION":
		return setBool(&c.DriftCorrection, key, value)
	case "AXIS_WEIGHT_X":
		return setFloat(&c.AxisWeightX, key, value)
	case "AXIS_WEIGHT_Y":
		return setFloat(&c.AxisWeightY, key, value)
	case "AXIS_WEIGHT_Z":
		return setFloat(&c.AxisWeightZ, key, value)

	// Classification
	case "IDLE_THRESHOLD":
		return setFloat(&c.IdleThreshold, key, value)
	case "IDLE_TIMEOUT":
		return setInt(&c.IdleTimeoutMS, key, value)
	case "TURN_THRESHOLD":
		return setFloat(&c.TurnThreshold, key, value)
	case "TURN_STABILITY_TIME":
		return setInt(&c.TurnStabilityTimeMS, key, value)
	case "STROKE_THRESHOLD":
		return setFloat(&c.StrokeThreshold, key, value)
	case "STROKE_COOLDOWN":
		return setInt(&c.StrokeCooldownMS, key, value)
	case "CONSECUTIVE_WINDOW":
		return setInt(&c.ConsecutiveWindowMS, key, value)
	case "ALTERNATING_WINDOW":
		return setInt(&c.AlternatingWindowMS, key, value)
	case "MIN_ALTERNATING_STROKES":
		return setInt(&c.MinAlternatingStrokes, key, value)

	// Gestures
	case "GESTURE_START_THRESHOLD":
		return setInt(&c.GestureStartThreshold, key, value)
	case "GESTURE_RESTART_THRESHOLD":
		return setInt(&c.GestureRestartThreshold, key, value)
	case "GESTURE_COOLDOWN":
		return setInt(&c.GestureCooldownMS, key, value)

	// Calibration
	case "CALIB_MODE":
		c.CalibMode = value
	case "CALIB_REQUIRED_SAMPLES":
		return setInt(&c.CalibRequiredSamples, key, value)
	case "CALIB_MIN_SAMPLES":
		return setInt(&c.CalibMinSamples, key, value)
	case "CALIB_STABILITY_THRESHOLD":
		return setFloat(&c.CalibStabilityThreshold, key, value)
	case "CALIB_SESSION_TIMEOUT":
		return setInt(&c.CalibSessionTimeoutMS, key, value)
	case "CALIB_SETTLE_DELAY":
		return setInt(&c.CalibSettleDelayMS, key, value)
	case "CALIB_RETRY_DELAY":
		return setInt(&c.CalibRetryDelayMS, key, value)
	case "CALIB_MAX_RETRIES":
		return setInt(&c.CalibMaxRetries, key, value)
	case "CALIB_PROFILE_PATH":
		c.CalibProfilePath = value

	// Sample bounds
	case "MAX_GYRO_RATE":
		return setFloat(&c.MaxGyroRate, key, value)
	case "MAX_ACCEL_Y":
		return setInt(&c.MaxAccelY, key, value)
	case "SAMPLE_QUEUE":
		return setInt(&c.SampleQueue, key, value)

	// Web server
	case "WEB_SERVER_PORT":
		return setInt(&c.WebServerPort, key, value)

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		return setInt(&c.DisplayUpdateInterval, key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setInt(dst *int, key, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setFloat(dst *float64, key, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, key, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

// validate checks that required fields are set and ratios are sane.
// Invalid values fail the load; nothing is silently clamped.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SampleIntervalMS <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive")
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor > 1 {
		return fmt.Errorf("SMOOTHING_FACTOR must be in (0,1], got %g", c.SmoothingFactor)
	}
	if c.IdleFollowSmoothing <= 0 || c.IdleFollowSmoothing > 1 {
		return fmt.Errorf("IDLE_FOLLOW_SMOOTHING must be in (0,1], got %g", c.IdleFollowSmoothing)
	}
	if c.GestureStartThreshold <= 0 {
		return fmt.Errorf("GESTURE_START_THRESHOLD must be positive, got %d", c.GestureStartThreshold)
	}
	if c.GestureRestartThreshold >= 0 {
		return fmt.Errorf("GESTURE_RESTART_THRESHOLD must be negative, got %d", c.GestureRestartThreshold)
	}
	if c.CalibMode != "zero_point" && c.CalibMode != "three_point" {
		return fmt.Errorf("CALIB_MODE must be zero_point or three_point, got %q", c.CalibMode)
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Uses
// sync.Once so this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Duration converts one of the millisecond fields.
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
