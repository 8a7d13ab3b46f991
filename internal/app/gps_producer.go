package app

import (
	"bufio"
	"encoding/json"
	"log"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/gps"
)

const knotsToMS = 0.514444

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes combined fixes as JSON to the GPS topic. RMC carries
// position and speed; GGA fills in altitude and a coarse horizontal
// accuracy estimate from HDOP.
func RunGPSProducer() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDGPS)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("GPS producer connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("GPS serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	reader := bufio.NewReader(port)

	var current gps.Fix

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("GPS read error: %v", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// noisy GPS or partial sentences
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			current.Altitude = m.Altitude
			// Rough error estimate; good enough to flag bad fixes.
			current.HAccuracy = m.HDOP * 5.0

		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if m.Validity != "A" {
				continue
			}

			current.Timestamp = time.Now().UTC()
			current.Latitude = m.Latitude
			current.Longitude = m.Longitude
			current.SpeedMS = m.Speed * knotsToMS

			payload, err := json.Marshal(current)
			if err != nil {
				log.Printf("GPS JSON marshal error: %v", err)
				continue
			}

			if token := client.Publish(cfg.TopicGPS, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("GPS publish error: %v", token.Error())
				continue
			}
		}
	}
}
