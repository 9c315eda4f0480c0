package main

import (
	"log"

	"github.com/relabs-tech/paddle_helm/internal/app"
	"github.com/relabs-tech/paddle_helm/internal/config"
)

func main() {
	log.Println("starting paddle-helm console (MQTT subscriber)")

	if err := config.InitGlobal("helm_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
