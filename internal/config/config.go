package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDGPS      string
	MQTTClientIDSession  string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicSampleLeft  string
	TopicSampleRight string
	TopicGPS         string
	TopicTelemetry   string
	TopicTurn        string

	// Session
	SensorMode     string // "single" or "dual"
	PrimarySide    string // "left" or "right"; ignored in single mode
	RawRecording   bool
	CalibrationDir string
	RunOutputDir   string

	// IMU Hardware
	IMULeftSPIDevice  string
	IMULeftCSPin      string
	IMURightSPIDevice string
	IMURightCSPin     string

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	// IMU Sample Rate Configuration
	IMUDLPFConfig    byte // Digital Low Pass Filter configuration (0-7)
	IMUSampleRateDiv byte // output rate = internal rate / (1 + div)

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	IMUSampleInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern. External
// code must use InitGlobal() to set and Get() to read, ensuring thread
// safety across producer/consumer goroutines.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_SESSION":
		c.MQTTClientIDSession = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_SAMPLE_LEFT":
		c.TopicSampleLeft = value
	case "TOPIC_SAMPLE_RIGHT":
		c.TopicSampleRight = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_TURN":
		c.TopicTurn = value

	// Session
	case "SENSOR_MODE":
		if value != "single" && value != "dual" {
			return fmt.Errorf("SENSOR_MODE must be \"single\" or \"dual\", got %q", value)
		}
		c.SensorMode = value
	case "PRIMARY_SIDE":
		if value != "left" && value != "right" {
			return fmt.Errorf("PRIMARY_SIDE must be \"left\" or \"right\", got %q", value)
		}
		c.PrimarySide = value
	case "RAW_RECORDING":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid RAW_RECORDING %q: %w", value, err)
		}
		c.RawRecording = enabled
	case "CALIBRATION_DIR":
		c.CalibrationDir = value
	case "RUN_OUTPUT_DIR":
		c.RunOutputDir = value

	// IMU Hardware
	case "IMU_LEFT_SPI_DEVICE":
		c.IMULeftSPIDevice = value
	case "IMU_LEFT_CS_PIN":
		c.IMULeftCSPin = value
	case "IMU_RIGHT_SPI_DEVICE":
		c.IMURightSPIDevice = value
	case "IMU_RIGHT_CS_PIN":
		c.IMURightCSPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	// IMU Sample Rate Configuration
	case "IMU_DLPF_CFG":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_DLPF_CFG %q: %w", value, err)
		}
		if val < 0 || val > 7 {
			return fmt.Errorf("IMU_DLPF_CFG must be 0-7, got %d", val)
		}
		c.IMUDLPFConfig = byte(val)
	case "IMU_SMPLRT_DIV":
		val, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SMPLRT_DIV %q: %w", value, err)
		}
		if val < 0 || val > 255 {
			return fmt.Errorf("IMU_SMPLRT_DIV must be 0-255, got %d", val)
		}
		c.IMUSampleRateDiv = byte(val)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.IMUSampleInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SensorMode == "" {
		return fmt.Errorf("SENSOR_MODE is required")
	}
	if c.SensorMode == "dual" && c.PrimarySide == "" {
		return fmt.Errorf("PRIMARY_SIDE is required in dual mode")
	}
	if c.CalibrationDir == "" {
		return fmt.Errorf("CALIBRATION_DIR is required")
	}
	if c.RunOutputDir == "" {
		return fmt.Errorf("RUN_OUTPUT_DIR is required")
	}
	if c.IMUSampleInterval == 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. Uses
// sync.Once so this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be
// called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
