package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/relabs-tech/mag_survey/internal/config"
)

// RunInfluxSink forwards samples and noise results from MQTT into an
// InfluxDB bucket for long-term survey records.
func RunInfluxSink() error {
	cfg := config.Get()

	if cfg.InfluxURL == "" || cfg.InfluxToken == "" {
		return fmt.Errorf("INFLUX_URL and INFLUX_TOKEN are required for the influx sink")
	}

	influxClient := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	defer influxClient.Close()
	writeAPI := influxClient.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket)

	clientID := cfg.MQTTClientIDInflux
	if clientID == "" {
		clientID = "mag-survey-influx"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("influx sink: connected to MQTT broker at %s", cfg.MQTTBroker)

	topicSamples := cfg.TopicMagSamples
	if topicSamples == "" {
		topicSamples = "mag/samples"
	}
	token := client.Subscribe(topicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s samplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("influx sink: sample unmarshal error: %v", err)
			return
		}
		ts, err := time.Parse(time.RFC3339, s.Time)
		if err != nil {
			ts = time.Now()
		}
		p := influxdb2.NewPointWithMeasurement("mag_sample").
			AddField("x_ut", s.X).
			AddField("y_ut", s.Y).
			AddField("z_ut", s.Z).
			AddField("norm_ut", s.Norm).
			AddField("temp_c", s.Temperature).
			SetTime(ts)
		writeAPI.WritePoint(p)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("influx sink: subscribed to %s", topicSamples)

	topicNoise := cfg.TopicMagNoise
	if topicNoise == "" {
		topicNoise = "mag/noise"
	}
	noiseToken := client.Subscribe(topicNoise, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var n noisePayload
		if err := json.Unmarshal(msg.Payload(), &n); err != nil {
			log.Printf("influx sink: noise unmarshal error: %v", err)
			return
		}
		ts, err := time.Parse(time.RFC3339, n.Time)
		if err != nil {
			ts = time.Now()
		}
		p := influxdb2.NewPointWithMeasurement("mag_noise").
			AddTag("averaging", n.Averaging).
			AddField("combination", n.Combination).
			AddField("count", n.Count).
			AddField("mean_x_ut", n.Mean.X).
			AddField("mean_y_ut", n.Mean.Y).
			AddField("mean_z_ut", n.Mean.Z).
			AddField("noise_x_nt", n.Noise.X).
			AddField("noise_y_nt", n.Noise.Y).
			AddField("noise_z_nt", n.Noise.Z).
			SetTime(ts)
		writeAPI.WritePoint(p)
	})
	noiseToken.Wait()
	if noiseToken.Error() != nil {
		return noiseToken.Error()
	}
	log.Printf("influx sink: subscribed to %s", topicNoise)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("influx sink: shutting down")
	writeAPI.Flush()
	client.Disconnect(250)
	return nil
}
