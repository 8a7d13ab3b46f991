// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/imu"
)

// SampleReader reads one accel+gyro sample in physical units.
type SampleReader interface {
	Read() (imu.Sample, error)
}

// accelFullScaleG and gyroFullScaleDPS map the configured range codes
// onto full-scale values for count-to-unit conversion.
var (
	accelFullScaleG  = []float64{2, 4, 8, 16}
	gyroFullScaleDPS = []float64{250, 500, 1000, 2000}
)

type bootSensor struct {
	name       string // "left" or "right" for logging
	imu        *mpu9250.MPU9250
	accelScale float64 // g per count
	gyroScale  float64 // deg/s per count
}

// Manager owns the left and right boot sensors. A side whose hardware
// fails to initialize is reported unavailable rather than fatal; the
// session then runs single-sided.
type Manager struct {
	left  *bootSensor
	right *bootSensor
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide sensor manager. Init must be
// called before the Read functions are used.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// Init brings up both boot sensors from the global config. Missing
// hardware on one side is logged and tolerated; both sides missing is
// an error.
func (m *Manager) Init() error {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	left, err := newBootSensor("left", cfg.IMULeftSPIDevice, cfg.IMULeftCSPin)
	if err != nil {
		log.Printf("sensors: left IMU unavailable: %v", err)
	} else {
		m.left = left
	}

	right, err := newBootSensor("right", cfg.IMURightSPIDevice, cfg.IMURightCSPin)
	if err != nil {
		log.Printf("sensors: right IMU unavailable: %v", err)
	} else {
		m.right = right
	}

	if m.left == nil && m.right == nil {
		return fmt.Errorf("no boot sensor available")
	}
	return nil
}

func (m *Manager) LeftAvailable() bool  { return m.left != nil }
func (m *Manager) RightAvailable() bool { return m.right != nil }

// ReadLeft reads the left sensor in physical units.
func (m *Manager) ReadLeft() (imu.Sample, error) {
	if m.left == nil {
		return imu.Sample{}, fmt.Errorf("left IMU not available")
	}
	return m.left.read()
}

// ReadRight reads the right sensor in physical units.
func (m *Manager) ReadRight() (imu.Sample, error) {
	if m.right == nil {
		return imu.Sample{}, fmt.Errorf("right IMU not available")
	}
	return m.right.read()
}

// Reader returns a SampleReader for the given side, or an error when
// that side's hardware is absent.
func (m *Manager) Reader(side imu.Side) (SampleReader, error) {
	switch side {
	case imu.SideRight:
		if m.right == nil {
			return nil, fmt.Errorf("right IMU not available")
		}
		return m.right, nil
	default: // left and single share the left sensor
		if m.left == nil {
			return nil, fmt.Errorf("left IMU not available")
		}
		return m.left, nil
	}
}

// newBootSensor initializes one MPU9250 over SPI and configures ranges
// and sample timing from the global config.
func newBootSensor(name, spiDev, csPin string) (*bootSensor, error) {
	cfg := config.Get()

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set gyro range: %w", name, err)
	}
	if err := dev.SetDLPFMode(cfg.IMUDLPFConfig); err != nil {
		return nil, fmt.Errorf("%s IMU: set DLPF config: %w", name, err)
	}
	if err := dev.SetSampleRateDivider(cfg.IMUSampleRateDiv); err != nil {
		return nil, fmt.Errorf("%s IMU: set sample rate divider: %w", name, err)
	}
	log.Printf("%s IMU: configured (accel ±%.0fg, gyro ±%.0f°/s, DLPF %d, divider %d)",
		name, accelFullScaleG[cfg.IMUAccelRange], gyroFullScaleDPS[cfg.IMUGyroRange],
		cfg.IMUDLPFConfig, cfg.IMUSampleRateDiv)

	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: %s IMU self-test failed: %v", name, err)
	}

	return &bootSensor{
		name:       name,
		imu:        dev,
		accelScale: accelFullScaleG[cfg.IMUAccelRange] / 32768.0,
		gyroScale:  gyroFullScaleDPS[cfg.IMUGyroRange] / 32768.0,
	}, nil
}

// read converts raw counts to g and deg/s.
func (s *bootSensor) read() (imu.Sample, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel X: %w", s.name, err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel Y: %w", s.name, err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU accel Z: %w", s.name, err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU gyro X: %w", s.name, err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU gyro Y: %w", s.name, err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return imu.Sample{}, fmt.Errorf("%s IMU gyro Z: %w", s.name, err)
	}

	return imu.Sample{
		Ax: float64(ax) * s.accelScale,
		Ay: float64(ay) * s.accelScale,
		Az: float64(az) * s.accelScale,
		Gx: float64(gx) * s.gyroScale,
		Gy: float64(gy) * s.gyroScale,
		Gz: float64(gz) * s.gyroScale,
	}, nil
}

// Read implements SampleReader.
func (s *bootSensor) Read() (imu.Sample, error) { return s.read() }
