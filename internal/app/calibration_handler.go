// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// WSMessage is a client command on the calibration socket.
type WSMessage struct {
	Action string `json:"action"` // start, finish, cancel
	Mode   string `json:"mode,omitempty"`
}

// WSResponse is a server push on the calibration socket.
type WSResponse struct {
	Type        string  `json:"type"` // progress, complete, error
	State       string  `json:"state,omitempty"`
	Phase       int     `json:"phase,omitempty"`
	PhaseTotal  int     `json:"phase_total,omitempty"`
	Instruction string  `json:"instruction,omitempty"`
	Collected   int     `json:"collected,omitempty"`
	Required    int     `json:"required,omitempty"`
	Rejected    int     `json:"rejected,omitempty"`
	Retries     int     `json:"retries,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// HandleCalibrationWS runs a guided calibration session over a websocket,
// feeding the session from the live MQTT sample stream. On completion the
// profile is saved so the helm daemon picks it up at next start.
func HandleCalibrationWS(client mqtt.Client, w http.ResponseWriter, r *http.Request) {
	cfg := config.Get()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("calibration: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	calCfg := PipelineConfig(cfg).Calib
	cal, err := calib.New(calCfg)
	if err != nil {
		log.Printf("calibration: %v", err)
		return
	}

	var mu sync.Mutex // guards cal and conn writes
	send := func(resp WSResponse) {
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("calibration: websocket write error: %v", err)
		}
	}

	var lastCollected int
	token := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s sample.SensorSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if cal.State() != calib.Calibrating && cal.State() != calib.Failed {
			return
		}
		prog := cal.Feed(s)

		switch {
		case prog.State == calib.Calibrated:
			prof, _ := cal.Profile()
			if err := prof.Save(cfg.CalibProfilePath); err != nil {
				send(WSResponse{Type: "error", Message: err.Error()})
				return
			}
			send(WSResponse{Type: "complete", State: prog.State.String(), Confidence: prof.Confidence})
			log.Printf("calibration: session complete, profile saved to %s", cfg.CalibProfilePath)
		case prog.State == calib.Failed && prog.Retries >= calCfg.MaxRetries:
			send(WSResponse{Type: "error", State: prog.State.String(),
				Message: "calibration failed: sensor not stable enough"})
		case prog.Collected != lastCollected:
			lastCollected = prog.Collected
			send(WSResponse{
				Type:        "progress",
				State:       prog.State.String(),
				Phase:       prog.Phase,
				PhaseTotal:  prog.PhaseTotal,
				Instruction: prog.Instruction,
				Collected:   prog.Collected,
				Required:    prog.Required,
				Rejected:    prog.Rejected,
				Retries:     prog.Retries,
			})
		}
	})
	token.Wait()
	if token.Error() != nil {
		log.Printf("calibration: subscribe error: %v", token.Error())
		return
	}
	defer client.Unsubscribe(cfg.TopicSamples)

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("calibration: websocket read error: %v", err)
			return
		}

		mu.Lock()
		switch msg.Action {
		case "start":
			mode := calib.ZeroPoint
			if msg.Mode == "three_point" {
				mode = calib.ThreePoint
			}
			cal.StartSession(mode)
			log.Printf("calibration: session started (%s)", mode)
		case "finish":
			cal.ForceFinish()
			if cal.State() == calib.Calibrated {
				prof, _ := cal.Profile()
				if err := prof.Save(cfg.CalibProfilePath); err != nil {
					send(WSResponse{Type: "error", Message: err.Error()})
				} else {
					send(WSResponse{Type: "complete", State: cal.State().String(), Confidence: prof.Confidence})
				}
			} else {
				send(WSResponse{Type: "error", State: cal.State().String(),
					Message: "session not complete: not enough collected samples"})
			}
		case "cancel":
			cal.Abort()
			mu.Unlock()
			log.Printf("calibration: cancelled by user")
			return
		}
		mu.Unlock()
	}
}
