// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"math"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/imu"
)

// mockCarver generates a plausible carving pattern: the boot rolls
// side to side with a 2 s period while the yaw gyro swings well above
// the turn threshold. Left and right boots mirror each other.
type mockCarver struct {
	start time.Time
}

func (m *mockCarver) sample(t time.Time, mirror float64) imu.Sample {
	elapsed := t.Sub(m.start).Seconds()
	phase := math.Sin(math.Pi * elapsed) // 2 s period

	rollRad := mirror * phase * 45 * math.Pi / 180
	return imu.Sample{
		Ax: 0,
		Ay: math.Sin(rollRad),
		Az: math.Cos(rollRad),
		Gx: 0,
		Gy: 0,
		Gz: mirror * phase * 40,
	}
}

// RunMockProducer publishes the synthetic carving pattern to the
// sample topics so the session pipeline can be exercised on a bench
// without sensors.
func RunMockProducer() error {
	log.Println("starting carving-computer mock producer")

	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	carver := &mockCarver{start: time.Now()}

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		left := imu.TimedSample{Side: imu.SideLeft, Timestamp: t, Sample: carver.sample(t, 1)}
		right := imu.TimedSample{Side: imu.SideRight, Timestamp: t, Sample: carver.sample(t, -1)}

		for _, s := range []struct {
			topic  string
			sample imu.TimedSample
		}{
			{cfg.TopicSampleLeft, left},
			{cfg.TopicSampleRight, right},
		} {
			payload, err := json.Marshal(s.sample)
			if err != nil {
				log.Printf("mock producer: marshal error: %v", err)
				continue
			}
			if token := client.Publish(s.topic, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("mock producer: MQTT publish error: %v", token.Error())
			}
		}
	}
	return nil
}
