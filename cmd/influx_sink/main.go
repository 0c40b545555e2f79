package main

import (
	"log"

	"github.com/relabs-tech/mag_survey/internal/app"
	"github.com/relabs-tech/mag_survey/internal/config"
)

func main() {
	log.Println("starting mag-survey InfluxDB sink")

	if err := config.InitGlobal("mag_survey_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunInfluxSink(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
