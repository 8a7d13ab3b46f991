// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Guided boot calibration for the carving computer.
//
// Two-phase capture per sensor:
//  1. Stationary: boot held still and flat on the ground. Establishes
//     gravity direction, accelerometer scale, and gyro bias.
//  2. Forward edges: boot tipped onto each edge in turn and held.
//     The two gravity directions fix the forward axis.
//
// Output:
//
//	Writes <side>_boot_calibration.json under the configured
//	calibration directory via the calibration store.
//
// Run:
//
//	go run ./cmd/calibration -side left
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/carving_computer/internal/calib"
	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/imu"
	"github.com/relabs-tech/carving_computer/internal/sensors"
)

const (
	stationarySamples = 200
	edgeHoldSamples   = 100
)

func main() {
	configPath := flag.String("config", "./carving_config.txt", "path to configuration file")
	sideFlag := flag.String("side", "left", "sensor to calibrate: left, right, or single")
	flag.Parse()

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	side, err := imu.ParseSide(*sideFlag)
	if err != nil {
		log.Fatalf("invalid -side: %v", err)
	}

	mgr := sensors.GetManager()
	if err := mgr.Init(); err != nil {
		log.Fatalf("failed to initialize sensors: %v", err)
	}

	reader, err := mgr.Reader(side)
	if err != nil {
		log.Fatalf("sensor not available: %v", err)
	}

	store, err := calib.NewFileStore(cfg.CalibrationDir)
	if err != nil {
		log.Fatalf("failed to open calibration store: %v", err)
	}
	engine := calib.NewEngine(store)

	stdin := bufio.NewReader(os.Stdin)
	interval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond

	fmt.Printf("\n=== BOOT CALIBRATION (%s sensor) ===\n", side)

	// Phase 1: stationary. Retry until it passes.
	for {
		waitForEnter(stdin, "Place the boot flat and still on the ground, then press ENTER")
		batch := collect(reader, stationarySamples, interval)

		if err := engine.CaptureStationary(side, batch); err != nil {
			reportCaptureError(err)
			continue
		}
		fmt.Println("Stationary capture OK.")
		break
	}

	// Phase 2: the two forward edge holds. A validation failure
	// restarts both holds, never the stationary phase.
	for {
		waitForEnter(stdin, "Tip the boot onto its FIRST edge and hold, then press ENTER")
		edgeOne := collect(reader, edgeHoldSamples, interval)

		waitForEnter(stdin, "Tip the boot onto its SECOND edge and hold, then press ENTER")
		edgeTwo := collect(reader, edgeHoldSamples, interval)

		if err := engine.CaptureForwardEdges(side, edgeOne, edgeTwo); err != nil {
			reportCaptureError(err)
			continue
		}
		break
	}

	fmt.Printf("\nCalibration committed for %s sensor (dir: %s)\n", side, cfg.CalibrationDir)
}

// collect reads a fixed-size batch at the configured sample interval,
// with a crude progress indicator.
func collect(reader sensors.SampleReader, count int, interval time.Duration) []imu.Sample {
	batch := make([]imu.Sample, 0, count)
	for i := 0; i < count; i++ {
		sample, err := reader.Read()
		if err != nil {
			log.Printf("read error (sample skipped): %v", err)
			time.Sleep(interval)
			continue
		}
		batch = append(batch, sample)

		if i%20 == 0 {
			fmt.Printf("\rcapturing... %3d%%", i*100/count)
		}
		time.Sleep(interval)
	}
	fmt.Printf("\rcapturing... done (%d samples)\n", len(batch))
	return batch
}

func waitForEnter(stdin *bufio.Reader, prompt string) {
	fmt.Println()
	fmt.Println(prompt)
	stdin.ReadString('\n')
}

func reportCaptureError(err error) {
	if ce, ok := calib.AsCaptureError(err); ok {
		fmt.Printf("capture failed: %s (measured %.4f, threshold %.4f); try again\n",
			ce.Code, ce.Measured, ce.Threshold)
		return
	}
	fmt.Printf("capture failed: %v; try again\n", err)
}
