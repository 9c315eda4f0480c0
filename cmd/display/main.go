package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/paddle_helm/internal/app"
	"github.com/relabs-tech/paddle_helm/internal/config"
)

func main() {
	configPath := flag.String("config", "./helm_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting paddle-helm status display (MQTT → SSD1306)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
