package app

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/paddle_helm/internal/calib"
	"github.com/relabs-tech/paddle_helm/internal/config"
	"github.com/relabs-tech/paddle_helm/internal/emitter"
	"github.com/relabs-tech/paddle_helm/internal/pipeline"
	"github.com/relabs-tech/paddle_helm/internal/sample"
)

// RunHelm is the pipeline daemon: it consumes sensor samples from MQTT,
// runs calibration, conditioning and classification, and publishes the
// resulting control events for the boat controller.
func RunHelm() error {
	log.Println("helm: starting paddle-helm classifier")

	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDHelm)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("helm: MQTT connect error: %v", token.Error())
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("helm: connected to MQTT broker at %s", cfg.MQTTBroker)

	handler := emitter.HandlerFunc(func(ev emitter.Event) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("helm: event marshal error: %v", err)
			return
		}
		if token := client.Publish(cfg.TopicEvents, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("helm: event publish error: %v", token.Error())
		}
	})

	p, err := pipeline.New(PipelineConfig(cfg), handler)
	if err != nil {
		return err
	}

	// A saved profile skips the startup calibration session.
	if prof, err := calib.LoadProfile(cfg.CalibProfilePath); err == nil {
		p.Calibrator().Restore(prof)
		log.Printf("helm: restored calibration profile from %s (offset %.2f/%.2f/%.2f, confidence %.2f)",
			cfg.CalibProfilePath, prof.Offset.X, prof.Offset.Y, prof.Offset.Z, prof.Confidence)
	} else {
		log.Printf("helm: no calibration profile (%v), starting a session on first samples", err)
		p.RequestRecalibration(parseMode(cfg.CalibMode))
	}

	// Samples arrive on paho's goroutines; the FIFO hand-off keeps the
	// strict temporal ordering the classifier depends on.
	token := client.Subscribe(cfg.TopicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s sample.SensorSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("helm: sample unmarshal error: %v", err)
			return
		}
		if !p.Offer(s) {
			log.Printf("helm: sample queue full, dropping")
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("helm: subscribed to %s", cfg.TopicSamples)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// Periodic state snapshot for the console, web and display surfaces.
	ticker := time.NewTicker(config.Duration(cfg.DisplayUpdateInterval))
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			payload, err := json.Marshal(p.Stats())
			if err != nil {
				log.Printf("helm: stats marshal error: %v", err)
				continue
			}
			client.Publish(cfg.TopicState, 0, true, payload)
		case <-sigCh:
			log.Println("helm: shutting down")
			return nil
		}
	}
}

func parseMode(s string) calib.Mode {
	if s == "three_point" {
		return calib.ThreePoint
	}
	return calib.ZeroPoint
}
