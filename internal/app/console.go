package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/session"
	"github.com/relabs-tech/carving_computer/internal/turn"
)

// RunConsole subscribes to the live telemetry and turn topics and
// prints them, for bench checks without the web viewer.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	telemetryToken := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t session.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: telemetry unmarshal error: %v", err)
			return
		}

		left, right := "  --  ", "  --  "
		if t.Left != nil {
			left = fmt.Sprintf("%6.2f", t.Left.Signed)
		}
		if t.Right != nil {
			right = fmt.Sprintf("%6.2f", t.Right.Signed)
		}
		fmt.Printf("[EDGE] L=%s R=%s COMB=%6.2f  SIGNAL=%7.2f  TURNS=%d  SPEED=%4.1fm/s\n",
			left, right, t.Combined.Signed, t.Signal, t.TurnCount, t.SpeedMS)
	})
	telemetryToken.Wait()
	if telemetryToken.Error() != nil {
		return telemetryToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTelemetry)

	turnToken := client.Subscribe(cfg.TopicTurn, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var w turn.Window
		if err := json.Unmarshal(msg.Payload(), &w); err != nil {
			log.Printf("console: turn unmarshal error: %v", err)
			return
		}

		fmt.Printf("[TURN] #%d %s  %.0fms  mean=%.1f  peak edge=%.1f°\n",
			w.Index, w.Direction, float64(w.Duration().Milliseconds()), w.MeanSignal, w.PeakEdgeAngle)
	})
	turnToken.Wait()
	if turnToken.Error() != nil {
		return turnToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTurn)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
