package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mag_survey_config.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
# MQTT
MQTT_BROKER = tcp://localhost:1883
MQTT_CLIENT_ID_SURVEY = mag-survey

TOPIC_MAG_SAMPLES = mag/samples
TOPIC_MAG_NOISE = mag/noise

MAG_I2C_BUS = 1
MAG_I2C_ADDR = 0x14
MAG_ODR_HZ = 100
MAG_AVG_SAMPLES = 4
MAG_SAMPLE_COUNT = 100
MAG_SAMPLE_INTERVAL = 100

WEB_SERVER_PORT = 8080
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MQTTBroker != "tcp://localhost:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.TopicMagSamples != "mag/samples" || cfg.TopicMagNoise != "mag/noise" {
		t.Errorf("topics = %q, %q", cfg.TopicMagSamples, cfg.TopicMagNoise)
	}
	if cfg.MagI2CAddr != 0x14 {
		t.Errorf("MagI2CAddr = 0x%X, want 0x14", cfg.MagI2CAddr)
	}
	if cfg.MagODRHz != 100 || cfg.MagAvgSamples != 4 {
		t.Errorf("ODR/avg = %d/%d, want 100/4", cfg.MagODRHz, cfg.MagAvgSamples)
	}
	if cfg.MagSampleCount != 100 {
		t.Errorf("MagSampleCount = %d, want 100", cfg.MagSampleCount)
	}
	if cfg.WebServerPort != 8080 {
		t.Errorf("WebServerPort = %d, want 8080", cfg.WebServerPort)
	}
}

func TestLoadRejectsMissingBroker(t *testing.T) {
	path := writeConfig(t, "MAG_I2C_BUS = 1\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "MQTT_BROKER") {
		t.Errorf("Load error = %v, want MQTT_BROKER required", err)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "MQTT_BROKER = tcp://localhost:1883\nNOT_A_KEY = 1\n")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an unknown key")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"MQTT_BROKER = tcp://localhost:1883\nMAG_ODR_HZ = 99\n",
		"MQTT_BROKER = tcp://localhost:1883\nMAG_AVG_SAMPLES = 3\n",
		"MQTT_BROKER = tcp://localhost:1883\nMAG_SAMPLE_COUNT = 0\n",
		"MQTT_BROKER = tcp://localhost:1883\nMAG_I2C_ADDR = nope\n",
		"MQTT_BROKER = tcp://localhost:1883\nbroken line\n",
	}
	for _, content := range cases {
		path := writeConfig(t, content)
		if _, err := Load(path); err == nil {
			t.Errorf("Load accepted invalid config:\n%s", content)
		}
	}
}
