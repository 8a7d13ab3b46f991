// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/frame"
	"github.com/relabs-tech/carving_computer/internal/gps"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/session"
)

// sessionEvent funnels both sensor sides and GPS fixes into one
// serialized processing loop; the aggregator and detector are
// single-owner and must never see concurrent calls.
type sessionEvent struct {
	sample *imu.TimedSample
	fix    *gps.Fix
}

// RunSession subscribes to the raw sample and GPS topics, drives the
// session aggregator, publishes live telemetry, and writes the
// RunRecord JSON when the process is told to stop.
func RunSession() error {
	cfg := config.Get()

	store, err := calib.NewFileStore(cfg.CalibrationDir)
	if err != nil {
		return err
	}
	engine := calib.NewEngine(store)

	mode := session.Mode(cfg.SensorMode)
	primary := imu.SideSingle
	if mode == session.ModeDual {
		primary, err = imu.ParseSide(cfg.PrimarySide)
		if err != nil {
			return fmt.Errorf("invalid PRIMARY_SIDE: %w", err)
		}
	}

	sampleRateHz := 1000.0 / float64(cfg.IMUSampleInterval)
	agg := session.NewAggregator(mode, primary, cfg.RawRecording, sampleRateHz)
	smoother := frame.NewSmoother()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSession)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("session: connected to MQTT broker at %s", cfg.MQTTBroker)

	events := make(chan sessionEvent, 256)

	sampleHandler := func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.TimedSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("session: sample unmarshal error: %v", err)
			return
		}
		events <- sessionEvent{sample: &s}
	}

	topics := []string{cfg.TopicSampleLeft}
	if mode == session.ModeDual {
		topics = append(topics, cfg.TopicSampleRight)
	}
	for _, topic := range topics {
		if token := client.Subscribe(topic, 0, sampleHandler); token.Wait() && token.Error() != nil {
			return token.Error()
		}
		log.Printf("session: subscribed to %s", topic)
	}

	if token := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("session: gps unmarshal error: %v", err)
			return
		}
		events <- sessionEvent{fix: &f}
	}); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("session: subscribed to %s", cfg.TopicGPS)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var pendingFix *gps.Fix
	var lastSpeed float64

	for {
		select {
		case ev := <-events:
			if ev.fix != nil {
				pendingFix = ev.fix
				lastSpeed = ev.fix.SpeedMS
				continue
			}

			s := ev.sample
			side := s.Side
			if mode == session.ModeSingle {
				side = imu.SideSingle
			}

			cal, err := engine.Calibration(side)
			if err != nil {
				log.Printf("session: calibration lookup for %s: %v", side, err)
				cal = calib.NewCalibrationState()
			}

			bootAccel, bootGyro := frame.ToBootFrame(s.Sample, cal)
			signed, magnitude := frame.EdgeAngles(bootAccel)
			edge := smoother.Update(side, signed, magnitude)

			boot := imu.Sample{
				Ax: bootAccel[0], Ay: bootAccel[1], Az: bootAccel[2],
				Gx: bootGyro[0], Gy: bootGyro[1], Gz: bootGyro[2],
			}

			win := agg.Ingest(s.Timestamp, side, s.Sample, boot, edge, lastSpeed, pendingFix)
			pendingFix = nil

			if win != nil {
				log.Printf("session: turn %d finished (%s, %.0f ms, peak edge %.1f°)",
					win.Index, win.Direction, float64(win.Duration().Milliseconds()), win.PeakEdgeAngle)
				if payload, err := json.Marshal(win); err != nil {
					log.Printf("session: turn marshal error: %v", err)
				} else if token := client.Publish(cfg.TopicTurn, 0, false, payload); token.Wait() && token.Error() != nil {
					log.Printf("session: MQTT publish error (turn): %v", token.Error())
				}
			}

			if payload, err := json.Marshal(agg.Telemetry()); err != nil {
				log.Printf("session: telemetry marshal error: %v", err)
			} else if token := client.Publish(cfg.TopicTelemetry, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("session: MQTT publish error (telemetry): %v", token.Error())
			}

		case <-sigCh:
			log.Println("session: shutting down, writing run record")
			return writeRunRecord(cfg, agg, engine, mode)
		}
	}
}

// writeRunRecord assembles and persists the RunRecord JSON.
func writeRunRecord(cfg *config.Config, agg *session.Aggregator, engine *calib.Engine, mode session.Mode) error {
	snapshot := make(map[string]calib.BootCalibration)
	sides := []imu.Side{imu.SideLeft}
	if mode == session.ModeDual {
		sides = append(sides, imu.SideRight)
	}
	for _, side := range sides {
		cal, err := engine.Calibration(side)
		if err != nil || !cal.Calibrated {
			continue
		}
		snapshot[string(side)] = cal.Boot()
	}

	record := agg.Finish(time.Now(), snapshot)

	if err := os.MkdirAll(cfg.RunOutputDir, 0755); err != nil {
		return fmt.Errorf("create run output dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	path := filepath.Join(cfg.RunOutputDir, fmt.Sprintf("run_%s.json", record.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	log.Printf("session: run record saved to %s (%d turns)", path, len(record.Turns))
	return nil
}
