package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/carving_computer/internal/config"
	"github.com/relabs-tech/carving_computer/internal/session"
)

// telemetryStreams tracks the connected websocket viewers. Every
// registered connection gets a read pump that discards inbound
// messages and unregisters the connection as soon as the peer goes
// away, so closed viewers do not linger until the next broadcast.
type telemetryStreams struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newTelemetryStreams() *telemetryStreams {
	return &telemetryStreams{conns: make(map[*websocket.Conn]struct{})}
}

func (s *telemetryStreams) add(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.remove(conn)
				return
			}
		}
	}()
}

func (s *telemetryStreams) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		conn.Close()
	}
}

func (s *telemetryStreams) broadcast(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(s.conns, conn)
			conn.Close()
		}
	}
}

func (s *telemetryStreams) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// RunWeb serves the live telemetry: a JSON snapshot endpoint, a
// websocket stream for the viewer, and static files from ./web.
func RunWeb() error {
	cfg := config.Get()

	var (
		mu            sync.RWMutex
		lastTelemetry session.Telemetry
		haveTelemetry bool
	)

	streams := newTelemetryStreams()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicTelemetry, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t session.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("web: telemetry unmarshal error: %v", err)
			return
		}

		mu.Lock()
		lastTelemetry = t
		haveTelemetry = true
		mu.Unlock()

		streams.broadcast(msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicTelemetry)

	http.HandleFunc("/api/telemetry", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveTelemetry {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastTelemetry); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/ws/telemetry", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		streams.add(conn)
	})

	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
