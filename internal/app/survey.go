// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mag_survey/internal/bmm350"
	"github.com/relabs-tech/mag_survey/internal/config"
	"github.com/relabs-tech/mag_survey/internal/mag"
	"github.com/relabs-tech/mag_survey/internal/stats"
)

// readoutCount is the number of rows printed for the readout-only
// combinations, matching the Bosch reference demo.
const readoutCount = 10

// surveyDevice is the slice of the BMM350 driver the survey loop needs.
// Narrowed to an interface so the loop can run against a fake in tests.
type surveyDevice interface {
	SetPowerMode(bmm350.PowerMode) error
	SetODRPerformance(bmm350.ODR, bmm350.Averaging) error
	Read() (bmm350.Data, error)
}

// combination is one power-mode/averaging pass of the survey.
type combination struct {
	descr string
	mode  bmm350.PowerMode
	avg   bmm350.Averaging
	// modeOnce: set the power mode once before the loop instead of
	// re-arming it per read.
	modeOnce bool
	// batch: collect a full batch and compute mean + noise instead of
	// a short readout.
	batch bool
}

// surveyCombinations mirrors the six passes of the Bosch forced-mode demo,
// all at 100 Hz ODR.
var surveyCombinations = []combination{
	{"Set forced mode fast and read data with averaging between 4 samples", bmm350.PowerModeForcedFast, bmm350.Avg4, true, false},
	{"Set forced mode fast and read data with averaging between 4 samples in a loop", bmm350.PowerModeForcedFast, bmm350.Avg4, false, false},
	{"Set forced mode and read data with no averaging between samples in a loop", bmm350.PowerModeForced, bmm350.AvgNone, false, false},
	{"Set forced mode fast and read data with averaging between 4 samples in a loop", bmm350.PowerModeForcedFast, bmm350.Avg4, false, true},
	{"Set forced mode and read data with no averaging between samples in a loop", bmm350.PowerModeForced, bmm350.AvgNone, false, true},
	{"Set forced mode fast and read data with averaging between 2 samples in a loop", bmm350.PowerModeForcedFast, bmm350.Avg2, false, true},
}

// noisePayload is the JSON schema published per batch.
type noisePayload struct {
	Combination int        `json:"combination"`
	Averaging   string     `json:"averaging"`
	Count       int        `json:"count"`
	Mean        mag.Vector `json:"mean_ut"`
	Noise       mag.Vector `json:"noise_nt_rms"`
	Time        string     `json:"time"`
}

// RunSurvey initializes the BMM350 and walks the forced-mode
// power/averaging combinations, printing sample rows and per-batch
// mean and noise figures. Batch results are also published to MQTT
// when a broker is reachable.
func RunSurvey(configPath string) error {
	if err := config.InitGlobal(configPath); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	busName := cfg.MagI2CBus
	if busName == "" {
		busName = "1"
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("i2c open on bus %s: %w", busName, err)
	}
	defer bus.Close()

	dev, err := bmm350.New(bus, bmm350.Opts{Addr: cfg.MagI2CAddr, ODR: bmm350.ODR100Hz})
	if err != nil {
		return fmt.Errorf("bmm350 init: %w", err)
	}

	w := os.Stdout

	id, err := dev.ChipID()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Read : 0x00 : BMM350 Chip ID : 0x%X\n", id)

	pmuStatus, err := dev.PMUStatus()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Expected : 0x07 : PMU cmd busy : 0x0")
	fmt.Fprintf(w, "Read : 0x07 : PMU cmd busy : 0x%X\n", pmuStatus&bmm350.PMUCmdBusyMask)

	errReg, err := dev.ErrorReg()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Expected : 0x02 : Error Register : 0x0")
	fmt.Fprintf(w, "Read : 0x02 : Error Register : 0x%X\n", errReg)

	// Pulsed, active high, push-pull, not mapped to the pin.
	if err := dev.ConfigureInterrupt(false, true, false, false); err != nil {
		return err
	}
	if err := dev.EnableDataReadyInterrupt(true); err != nil {
		return err
	}
	intCtrl, err := dev.IntCtrl()
	if err != nil {
		return err
	}
	wantIntCtrl := byte(1<<1 | 1<<2 | 1<<7)
	fmt.Fprintf(w, "Expected : 0x2E : Interrupt control : 0x%X\n", wantIntCtrl)
	fmt.Fprintf(w, "Read : 0x2E : Interrupt control : 0x%X\n", intCtrl)
	if intCtrl&bmm350.DRDYDataRegEnMask != 0 {
		fmt.Fprintln(w, "Data ready enabled")
	}

	// MQTT is best-effort: the survey is usable on the bench without a
	// broker running.
	var client mqtt.Client
	clientID := cfg.MQTTClientIDSurvey
	if clientID == "" {
		clientID = "mag-survey"
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(clientID)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		log.Printf("survey: mqtt connect error (continuing without publishing): %v", token.Error())
	} else {
		client = c
		defer client.Disconnect(250)
	}

	count := cfg.MagSampleCount
	if count <= 0 {
		count = 100
	}

	fmt.Fprintln(w, "Compensated Magnetometer and Temperature data in forced mode and forced mode fast")

	for i, combo := range surveyCombinations {
		fmt.Fprintf(w, "\nCOMBINATION %d :\n", i+1)
		fmt.Fprintln(w, combo.descr)

		if err := dev.SetODRPerformance(bmm350.ODR100Hz, combo.avg); err != nil {
			return err
		}

		if !combo.batch {
			if err := runReadout(dev, w, combo, readoutCount); err != nil {
				return err
			}
			continue
		}

		batch, err := collectBatch(dev, w, combo, count)
		if err != nil {
			return err
		}
		mean, err := stats.Mean(batch)
		if err != nil {
			return err
		}
		printAverage(w, mean)

		noise, err := stats.Noise(batch, mean)
		if err != nil {
			return err
		}
		printNoise(w, noise)

		if client != nil {
			publishNoise(client, cfg.TopicMagNoise, noisePayload{
				Combination: i + 1,
				Averaging:   combo.avg.String(),
				Count:       len(batch),
				Mean:        mean,
				Noise:       noise,
				Time:        time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	return nil
}

// runReadout prints count sample rows for one combination without
// keeping the samples.
func runReadout(dev surveyDevice, w io.Writer, combo combination, count int) error {
	if combo.modeOnce {
		if err := dev.SetPowerMode(combo.mode); err != nil {
			return err
		}
	}
	printSampleHeader(w)
	start := time.Now()
	for i := 0; i < count; i++ {
		if !combo.modeOnce {
			if err := dev.SetPowerMode(combo.mode); err != nil {
				return err
			}
		}
		data, err := dev.Read()
		if err != nil {
			return err
		}
		printSampleRow(w, time.Since(start), sampleFromData(data))
	}
	return nil
}

// collectBatch reads count samples for one combination, printing each
// row, and returns the batch for statistics.
func collectBatch(dev surveyDevice, w io.Writer, combo combination, count int) (mag.Batch, error) {
	batch := make(mag.Batch, 0, count)
	printSampleHeader(w)
	start := time.Now()
	for i := 0; i < count; i++ {
		if err := dev.SetPowerMode(combo.mode); err != nil {
			return nil, err
		}
		data, err := dev.Read()
		if err != nil {
			return nil, err
		}
		s := sampleFromData(data)
		printSampleRow(w, time.Since(start), s)
		batch = append(batch, s)
	}
	return batch, nil
}

func sampleFromData(d bmm350.Data) mag.Sample {
	return mag.Sample{X: d.X, Y: d.Y, Z: d.Z, Temperature: d.Temperature}
}

func publishNoise(client mqtt.Client, topic string, p noisePayload) {
	if topic == "" {
		topic = "mag/noise"
	}
	b, err := json.Marshal(p)
	if err != nil {
		log.Printf("survey: noise marshal error: %v", err)
		return
	}
	if token := client.Publish(topic, 0, true, b); token.Wait() && token.Error() != nil {
		log.Printf("survey: mqtt publish error (noise): %v", token.Error())
	}
}
