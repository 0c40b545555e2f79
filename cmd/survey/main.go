// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/mag_survey/internal/app"
)

func main() {
	if err := app.RunSurvey("mag_survey_config.txt"); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
