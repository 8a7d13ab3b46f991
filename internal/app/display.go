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

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/session"
)

// displayData holds the latest telemetry for the status display.
type displayData struct {
	mu        sync.RWMutex
	telemetry session.Telemetry
	have      bool
}

// RunDisplay drives the SSD1306 status display: live combined edge
// angle, turn signal, and turn count.
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

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Println("display: SSD1306 initialized")

	data := &displayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t session.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("display: telemetry unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.telemetry = t
		data.have = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		t := data.telemetry
		have := data.have
		data.mu.RUnlock()

		if !have {
			continue
		}

		lines := []string{
			fmt.Sprintf("EDGE %+6.1f deg", t.Combined.Signed),
			fmt.Sprintf("SIG  %+7.1f", t.Signal),
			fmt.Sprintf("TURNS %d", t.TurnCount),
		}
		if err := drawLines(dev, lines); err != nil {
			log.Printf("display: draw error: %v", err)
		}
	}
	return nil
}

// drawLines renders text lines top to bottom on the display.
func drawLines(dev *ssd1306.Dev, lines []string) error {
	img := image1bit.NewVerticalLSB(dev.Bounds())
	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	y := 16
	for _, line := range lines {
		drawer.Dot = fixed.P(4, y)
		drawer.DrawString(line)
		y += 18
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}
