// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/mpu9250"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// imuSource reads the MPU-9250 over SPI for deployments where the sensor
// is wired directly instead of going through the wireless receiver.
type imuSource struct {
	dev *mpu9250.Device
}

func newIMUSource(spiDev, csPin string) (*imuSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", csPin)
	}

	dev, err := mpu9250.New(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU init (%s): %w", spiDev, err)
	}

	return &imuSource{dev: dev}, nil
}

// Next reads one sample: three gyro axes plus the accelerometer Y axis.
func (s *imuSource) Next() (sample.SensorSample, error) {
	raw, err := s.dev.Read()
	if err != nil {
		return sample.SensorSample{}, fmt.Errorf("IMU read: %w", err)
	}

	return sample.SensorSample{
		Gyro:   sample.Vec3{X: raw.GyroX, Y: raw.GyroY, Z: raw.GyroZ},
		AccelY: int32(raw.AccelY),
		T:      time.Now(),
	}, nil
}

// RunIMUProducer samples the directly-wired IMU on the configured
// interval and publishes SensorSamples to MQTT.
func RunIMUProducer() error {
	cfg := config.Get()

	if cfg.IMUSPIDevice == "" || cfg.IMUCSPin == "" {
		return fmt.Errorf("imu_producer: IMU_SPI_DEVICE and IMU_CS_PIN are required")
	}

	src, err := newIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin)
	if err != nil {
		return err
	}
	defer src.dev.Close()
	log.Printf("imu_producer: IMU initialized on %s (CS %s)", cfg.IMUSPIDevice, cfg.IMUCSPin)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSensor)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Println("imu_producer: connected to MQTT, starting publish loop")

	ticker := time.NewTicker(config.Duration(cfg.SampleIntervalMS))
	defer ticker.Stop()

	for range ticker.C {
		s, err := src.Next()
		if err != nil {
			log.Printf("imu_producer: read error: %v", err)
			continue
		}
		payload, err := json.Marshal(s)
		if err != nil {
			log.Printf("imu_producer: marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicSamples, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("imu_producer: publish error: %v", token.Error())
		}
	}
	return nil
}
