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
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mag_survey/internal/bmm350"
	"github.com/relabs-tech/mag_survey/internal/config"
	"github.com/relabs-tech/mag_survey/internal/mag"
	"github.com/relabs-tech/mag_survey/internal/stats"
)

// samplePayload is the JSON schema published for each sample.
// Field components are in µT, norm is magnitude in µT, time is RFC3339.
type samplePayload struct {
	mag.Sample
	Norm float64 `json:"norm"`
	Time string  `json:"time"`
}

// normLogInterval is the number of samples between running field-norm
// statistics log lines.
const normLogInterval = 100

// bmm350Source adapts the driver to mag.SampleSource: each Next re-arms
// forced mode and reads one compensated measurement.
type bmm350Source struct {
	dev *bmm350.Dev
}

func (s *bmm350Source) Next() (mag.Sample, error) {
	if err := s.dev.SetPowerMode(bmm350.PowerModeForced); err != nil {
		return mag.Sample{}, err
	}
	data, err := s.dev.Read()
	if err != nil {
		return mag.Sample{}, err
	}
	return sampleFromData(data), nil
}

// newProducerSource opens the configured I2C bus and device, or hands
// back the mock source when MAG_I2C_BUS=mock for bench-free development.
func newProducerSource(cfg *config.Config) (mag.SampleSource, func(), error) {
	if cfg.MagI2CBus == "mock" {
		log.Println("producer: using mock magnetometer source")
		return NewMockSource(time.Now().UnixNano()), func() {}, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph host init: %w", err)
	}

	busName := cfg.MagI2CBus
	if busName == "" {
		busName = "1"
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c open on bus %s: %w", busName, err)
	}

	dev, err := bmm350.New(bus, bmm350.Opts{
		Addr: cfg.MagI2CAddr,
		ODR:  odrFromHz(cfg.MagODRHz),
		Avg:  avgFromCount(cfg.MagAvgSamples),
	})
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("bmm350 init: %w", err)
	}
	id, _ := dev.ChipID()
	log.Printf("producer: BMM350 chip ID 0x%02X on bus %s", id, busName)

	return &bmm350Source{dev: dev}, func() { bus.Close() }, nil
}

// RunMagProducer samples the magnetometer in forced mode at a fixed
// interval and publishes each compensated sample to MQTT.
func RunMagProducer(configPath string) error {
	if err := config.InitGlobal(configPath); err != nil {
		return fmt.Errorf("config init: %w", err)
	}
	cfg := config.Get()

	src, closeSource, err := newProducerSource(cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	clientID := cfg.MQTTClientIDProducer
	if clientID == "" {
		clientID = "mag-survey-producer"
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	topic := cfg.TopicMagSamples
	if topic == "" {
		topic = "mag/samples"
	}

	ms := cfg.MagSampleInterval
	if ms <= 0 {
		ms = 100
	}
	interval := time.Duration(ms) * time.Millisecond

	log.Println("producer: started")

	var norms stats.Accumulator
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for t := range ticker.C {
		s, err := src.Next()
		if err != nil {
			log.Printf("producer: read error: %v", err)
			continue
		}

		norms.Add(s.Norm())
		if int(norms.Count)%normLogInterval == 0 {
			log.Printf("producer: |B| mean=%.2fuT stddev=%.3fuT over %d samples",
				norms.Mean(), norms.StdDev(), int(norms.Count))
		}

		payload := samplePayload{
			Sample: s,
			Norm:   s.Norm(),
			Time:   t.UTC().Format(time.RFC3339),
		}
		b, err := json.Marshal(payload)
		if err != nil {
			log.Printf("producer: marshal error: %v", err)
			continue
		}
		if token := client.Publish(topic, 0, false, b); token.Wait() && token.Error() != nil {
			log.Printf("producer: mqtt publish error: %v", token.Error())
		}
	}
	return nil
}

// odrFromHz maps a configured rate in Hz to its register code.
// Unknown values fall back to 100 Hz.
func odrFromHz(hz int) bmm350.ODR {
	switch hz {
	case 400:
		return bmm350.ODR400Hz
	case 200:
		return bmm350.ODR200Hz
	case 100:
		return bmm350.ODR100Hz
	case 50:
		return bmm350.ODR50Hz
	case 25:
		return bmm350.ODR25Hz
	case 12:
		return bmm350.ODR12_5Hz
	default:
		return bmm350.ODR100Hz
	}
}

// avgFromCount maps a configured averaging count to its register code.
func avgFromCount(n int) bmm350.Averaging {
	switch n {
	case 2:
		return bmm350.Avg2
	case 4:
		return bmm350.Avg4
	case 8:
		return bmm350.Avg8
	default:
		return bmm350.AvgNone
	}
}
