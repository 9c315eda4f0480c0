// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided calibration for the paddle controller.
//
// Subscribes to the sample topic on the broker, walks the operator
// through a zero-point or three-point session and writes the resulting
// profile JSON where the helm process will pick it up on next start.
//
// Run:
//
//	go run ./cmd/calibrate -mode three_point
//
// A producer (./cmd/producer or ./cmd/imu_producer) must be publishing
// samples while this runs.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/paddle_helm/internal/app"
	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

func main() {
	configPath := flag.String("config", "./helm_config.txt", "path to configuration file")
	modeFlag := flag.String("mode", "zero_point", "calibration mode: zero_point or three_point")
	outPath := flag.String("out", "", "profile output path (default: CALIB_PROFILE_PATH from config)")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	mode, err := calib.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}

	path := *outPath
	if path == "" {
		path = cfg.CalibProfilePath
	}

	cal, err := calib.New(app.PipelineConfig(cfg).Calib)
	if err != nil {
		log.Fatalf("calibrator config: %v", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDHelm + "-calibrate")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("MQTT connect error: %v", token.Error())
	}
	defer client.Disconnect(250)
	fmt.Printf("Connected to %s, watching %s\n", cfg.MQTTBroker, cfg.TopicSamples)

	var mu sync.Mutex
	token := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s sample.SensorSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		mu.Lock()
		cal.Feed(s)
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		log.Fatalf("subscribe error: %v", token.Error())
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n=== Paddle calibration (%s) ===\n", mode)
	fmt.Println("Place the paddle in its neutral resting position.")
	waitEnter(reader, "Press Enter to start")

	mu.Lock()
	cal.StartSession(mode)
	mu.Unlock()

	maxRetries := app.PipelineConfig(cfg).Calib.MaxRetries
	lastPhase := -1
	lastCollected := -1
	for {
		mu.Lock()
		st := cal.State()
		p := cal.Snapshot()
		mu.Unlock()

		if st == calib.Calibrated {
			break
		}
		if st == calib.Failed && p.Retries >= maxRetries {
			log.Fatalf("calibration failed after %d retries: keep the paddle still and try again", p.Retries)
		}

		if p.Phase != lastPhase && p.Instruction != "" {
			fmt.Printf("\nPhase %d/%d: %s\n", p.Phase+1, p.PhaseTotal, p.Instruction)
			lastPhase = p.Phase
		}
		if p.Collected != lastCollected {
			fmt.Printf("\r  %d/%d samples (rejected %d)   ", p.Collected, p.Required, p.Rejected)
			lastCollected = p.Collected
		}
		time.Sleep(200 * time.Millisecond)
	}

	mu.Lock()
	profile, ok := cal.Profile()
	mu.Unlock()
	if !ok {
		log.Fatal("calibration finished without a profile")
	}

	fmt.Printf("\n\nCalibration complete.\n")
	fmt.Printf("  Offset:     (%.3f, %.3f, %.3f)\n", profile.Offset.X, profile.Offset.Y, profile.Offset.Z)
	fmt.Printf("  StdDev:     (%.3f, %.3f, %.3f)\n", profile.StdDev.X, profile.StdDev.Y, profile.StdDev.Z)
	fmt.Printf("  Confidence: %.2f\n", profile.Confidence)
	if profile.Sensitivity != nil {
		fmt.Printf("  Sensitivity: (%.3f, %.3f, %.3f)\n",
			profile.Sensitivity.X, profile.Sensitivity.Y, profile.Sensitivity.Z)
	}

	if err := profile.Save(path); err != nil {
		log.Fatalf("failed to save profile: %v", err)
	}
	fmt.Printf("Profile written to %s\n", path)
}

func waitEnter(reader *bufio.Reader, prompt string) {
	fmt.Printf("%s...", prompt)
	line, _ := reader.ReadString('\n')
	_ = strings.TrimSpace(line)
	fmt.Println()
}
