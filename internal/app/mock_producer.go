// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// mockSource generates a plausible paddling session without hardware: a
// quiet calibration stretch, then alternating strokes with a start-gesture
// spike at the beginning.
type mockSource struct {
	start time.Time
}

func newMockSource() *mockSource {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (sample.SensorSample, error) {
	now := time.Now()
	elapsed := now.Sub(m.start).Seconds()

	var gx float64
	var ay int32

	switch {
	case elapsed < 12:
		// Still, so a zero-point session can complete.
		gx = 0.4 * math.Sin(elapsed*7)
	case elapsed < 12.2:
		// One jolt: StartGame.
		ay = 12000
	default:
		// Alternating strokes at ~1 Hz.
		gx = 45 * math.Sin((elapsed-12)*2*math.Pi)
	}

	return sample.SensorSample{
		Gyro:   sample.Vec3{X: gx, Y: 0.2 * math.Sin(elapsed*3), Z: 0.1 * math.Cos(elapsed*5)},
		AccelY: ay,
		T:      now,
	}, nil
}

// RunMockProducer publishes the synthetic session to the samples topic.
func RunMockProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSensor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Println("mock_producer: connected to MQTT, generating synthetic paddling")

	src := newMockSource()
	ticker := time.NewTicker(config.Duration(cfg.SampleIntervalMS))
	defer ticker.Stop()

	for range ticker.C {
		s, _ := src.Next()
		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("mock_producer: marshal error: %v", err)
			continue
		}
		client.Publish(cfg.TopicSamples, 0, false, payload)
	}
	return nil
}
