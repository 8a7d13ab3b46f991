package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/sensors"
)

// RunSampleProducer reads the boot sensors on a fixed tick and
// publishes timestamped samples in physical units to the per-side
// sample topics.
func RunSampleProducer() error {
	log.Println("starting carving-computer sample producer")

	cfg := config.Get()

	mgr := sensors.GetManager()
	if err := mgr.Init(); err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("connected to MQTT, starting publish loop")

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	publish := func(topic string, side imu.Side, sample imu.Sample, ts time.Time) {
		payload, err := json.Marshal(imu.TimedSample{Side: side, Timestamp: ts, Sample: sample})
		if err != nil {
			log.Printf("producer: %s marshal error: %v", side, err)
			return
		}
		if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("producer: MQTT publish error (%s): %v", side, token.Error())
		}
	}

	for t := range ticker.C {
		if mgr.LeftAvailable() {
			if sample, err := mgr.ReadLeft(); err != nil {
				log.Printf("producer: left read error: %v", err)
			} else {
				publish(cfg.TopicSampleLeft, imu.SideLeft, sample, t)
			}
		}

		if mgr.RightAvailable() {
			if sample, err := mgr.ReadRight(); err != nil {
				log.Printf("producer: right read error: %v", err)
			} else {
				publish(cfg.TopicSampleRight, imu.SideRight, sample, t)
			}
		}
	}
	return nil
}
