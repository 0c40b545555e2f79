package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/mag_survey/internal/gps"
)

// RunConsoleMQTT subscribes to the sample, noise and GPS topics and
// prints every message to the console.
func RunConsoleMQTT(broker, clientID, topicSamples, topicNoise, topicGPS string) error {
	if clientID == "" {
		clientID = "mag-survey-console"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", broker)

	if topicSamples == "" {
		topicSamples = "mag/samples"
	}
	sampleToken := client.Subscribe(topicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s samplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: sample unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[MAG ]  X=%8.2f  Y=%8.2f  Z=%8.2f uT  |B|=%7.2f uT  T=%5.1f C\n",
			s.X, s.Y, s.Z, s.Norm, s.Temperature,
		)
	})
	sampleToken.Wait()
	if sampleToken.Error() != nil {
		return sampleToken.Error()
	}
	log.Printf("console: subscribed to %s", topicSamples)

	if topicNoise == "" {
		topicNoise = "mag/noise"
	}
	noiseToken := client.Subscribe(topicNoise, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var n noisePayload
		if err := json.Unmarshal(msg.Payload(), &n); err != nil {
			log.Printf("console: noise unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[NOIS]  combo=%d avg=%s n=%d  x=%8.2f y=%8.2f z=%8.2f nTrms\n",
			n.Combination, n.Averaging, n.Count, n.Noise.X, n.Noise.Y, n.Noise.Z,
		)
	})
	noiseToken.Wait()
	if noiseToken.Error() != nil {
		return noiseToken.Error()
	}
	log.Printf("console: subscribed to %s", topicNoise)

	if topicGPS == "" {
		topicGPS = "mag/gps"
	}
	gpsToken := client.Subscribe(topicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Printf(
			"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f validity=%s\n",
			f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
		)
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", topicGPS)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
