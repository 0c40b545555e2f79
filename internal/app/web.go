package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/mag_survey/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// RunWeb serves the latest sample and noise result over a JSON API and
// streams live samples to WebSocket clients.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu         sync.RWMutex
		lastSample samplePayload
		haveSample bool
		lastNoise  noisePayload
		haveNoise  bool
	)

	var (
		wsMu      sync.Mutex
		wsClients = make(map[*websocket.Conn]bool)
	)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	topicSamples := cfg.TopicMagSamples
	if topicSamples == "" {
		topicSamples = "mag/samples"
	}
	token := client.Subscribe(topicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s samplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: sample unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastSample = s
		haveSample = true
		mu.Unlock()

		// Fan the raw payload out to WebSocket clients, dropping the
		// ones that have gone away.
		wsMu.Lock()
		for conn := range wsClients {
			if err := conn.WriteMessage(websocket.TextMessage, msg.Payload()); err != nil {
				conn.Close()
				delete(wsClients, conn)
			}
		}
		wsMu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", topicSamples)

	topicNoise := cfg.TopicMagNoise
	if topicNoise == "" {
		topicNoise = "mag/noise"
	}
	noiseToken := client.Subscribe(topicNoise, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var n noisePayload
		if err := json.Unmarshal(msg.Payload(), &n); err != nil {
			log.Printf("web: noise unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastNoise = n
		haveNoise = true
		mu.Unlock()
	})
	noiseToken.Wait()
	if noiseToken.Error() != nil {
		return noiseToken.Error()
	}
	log.Printf("web: subscribed to %s", topicNoise)

	http.HandleFunc("/api/field", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveSample {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastSample); err != nil {
			log.Printf("web: field encode error: %v", err)
		}
	})

	http.HandleFunc("/api/noise", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveNoise {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastNoise); err != nil {
			log.Printf("web: noise encode error: %v", err)
		}
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		wsMu.Lock()
		wsClients[conn] = true
		wsMu.Unlock()
		log.Printf("web: websocket client connected from %s", r.RemoteAddr)
	})

	port := cfg.WebServerPort
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	log.Printf("web: serving on %s", addr)
	return http.ListenAndServe(addr, nil)
}
