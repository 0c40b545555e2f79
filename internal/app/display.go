package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/mag_survey/internal/config"
)

// displayData holds the latest values shown on the SSD1306.
type displayData struct {
	mu sync.RWMutex

	sample     samplePayload
	haveSample bool

	noise     noisePayload
	haveNoise bool
}

// RunDisplay shows the latest field sample and noise result on an
// SSD1306 OLED, updated from MQTT.
func RunDisplay() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	display, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	if err := showSplash(display); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &displayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	topicSamples := cfg.TopicMagSamples
	if topicSamples == "" {
		topicSamples = "mag/samples"
	}
	token := client.Subscribe(topicSamples, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s samplePayload
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("display: sample unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.sample = s
		data.haveSample = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topicSamples)

	topicNoise := cfg.TopicMagNoise
	if topicNoise == "" {
		topicNoise = "mag/noise"
	}
	noiseToken := client.Subscribe(topicNoise, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var n noisePayload
		if err := json.Unmarshal(msg.Payload(), &n); err != nil {
			log.Printf("display: noise unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.noise = n
		data.haveNoise = true
		data.mu.Unlock()
	})
	noiseToken.Wait()
	if noiseToken.Error() != nil {
		return noiseToken.Error()
	}
	log.Printf("display: subscribed to %s", topicNoise)

	ms := cfg.DisplayUpdateInterval
	if ms <= 0 {
		ms = 500
	}
	ticker := time.NewTicker(time.Duration(ms) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		sample := data.sample
		haveSample := data.haveSample
		noise := data.noise
		haveNoise := data.haveNoise
		data.mu.RUnlock()

		if err := updateMagDisplay(display, sample, haveSample, noise, haveNoise); err != nil {
			log.Printf("display: update error: %v", err)
		}
	}

	return nil
}

func newDrawer(img *image1bit.VerticalLSB) *font.Drawer {
	// Blank image
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	return &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
}

func updateMagDisplay(dev *ssd1306.Dev, sample samplePayload, haveSample bool, noise noisePayload, haveNoise bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := newDrawer(img)

	if !haveSample {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Magnetometer"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(fmt.Sprintf("X %8.2f uT", sample.X)))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("Y %8.2f uT", sample.Y)))

	drawer.Dot = fixed.P(0, 39)
	drawer.DrawBytes([]byte(fmt.Sprintf("Z %8.2f uT", sample.Z)))

	drawer.Dot = fixed.P(0, 52)
	if haveNoise {
		drawer.DrawBytes([]byte(fmt.Sprintf("N %6.0f nTrms", noise.Noise.X)))
	} else {
		drawer.DrawBytes([]byte(fmt.Sprintf("|B| %6.2f uT", sample.Norm)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func showSplash(dev *ssd1306.Dev) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := newDrawer(img)

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Mag Survey"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("samples"))

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
