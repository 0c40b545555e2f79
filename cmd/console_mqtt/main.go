package main

import (
	"log"

	"github.com/relabs-tech/mag_survey/internal/app"
	"github.com/relabs-tech/mag_survey/internal/config"
)

func main() {
	log.Println("starting mag-survey console (MQTT subscriber)")

	if err := config.InitGlobal("mag_survey_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	err := app.RunConsoleMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole,
		cfg.TopicMagSamples, cfg.TopicMagNoise, cfg.TopicGPS)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
