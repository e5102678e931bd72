package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/vitals"
)

// VitalsMessage is a real-time vitals update pushed to consumers
type VitalsMessage struct {
	SessionID           string                  `json:"session_id"`
	SpO2                float64                 `json:"spo2"`
	Pressure            string                  `json:"pressure"`
	HeartRate           int                     `json:"heart_rate"`
	SignalQuality       float64                 `json:"signal_quality"`
	ArrhythmiaStatus    string                  `json:"arrhythmia_status"`
	LastArrhythmiaEvent *vitals.ArrhythmiaEvent `json:"last_arrhythmia_event,omitempty"`
	Timestamp           time.Time               `json:"timestamp"`
}

// Client represents a connected WebSocket consumer
type Client struct {
	hub       *VitalsHub
	conn      *websocket.Conn
	send      chan []byte
	logger    *logrus.Logger
	sessionID string // Set when the client subscribes to one session
}

// VitalsHub manages WebSocket consumers and broadcasts vitals updates
type VitalsHub struct {
	logger             *logrus.Logger
	clients            map[*Client]bool
	sessionSubscribers map[string]map[*Client]bool
	broadcast          chan *VitalsMessage
	register           chan *Client
	unregister         chan *Client
	mutex              sync.RWMutex
}

// WebSocketUpgrader configures the WebSocket connection
var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewVitalsHub creates a new vitals broadcast hub
func NewVitalsHub(logger *logrus.Logger) *VitalsHub {
	return &VitalsHub{
		logger:             logger,
		clients:            make(map[*Client]bool),
		sessionSubscribers: make(map[string]map[*Client]bool),
		broadcast:          make(chan *VitalsMessage, 64),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
	}
}

// Run starts the hub loop until the context is cancelled
func (h *VitalsHub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket vitals hub")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Shutting down WebSocket vitals hub")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			if client.sessionID != "" {
				if _, exists := h.sessionSubscribers[client.sessionID]; !exists {
					h.sessionSubscribers[client.sessionID] = make(map[*Client]bool)
				}
				h.sessionSubscribers[client.sessionID][client] = true
			}
			h.mutex.Unlock()

			metrics.WSClientsConnected.Inc()
			h.logger.WithField("session_id", client.sessionID).Info("WebSocket consumer connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				if client.sessionID != "" {
					if subscribers, exists := h.sessionSubscribers[client.sessionID]; exists {
						delete(subscribers, client)
						if len(subscribers) == 0 {
							delete(h.sessionSubscribers, client.sessionID)
						}
					}
				}

				metrics.WSClientsConnected.Dec()
				h.logger.Info("WebSocket consumer disconnected")
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal vitals message")
				continue
			}

			h.mutex.Lock()

			if subscribers, exists := h.sessionSubscribers[message.SessionID]; exists {
				for client := range subscribers {
					select {
					case client.send <- data:
					default:
						close(client.send)
						delete(h.clients, client)
						delete(subscribers, client)
					}
				}
			}

			// Clients without a session filter receive everything
			for client := range h.clients {
				if client.sessionID != "" {
					continue
				}
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}

			h.mutex.Unlock()
		}
	}
}

// BroadcastSnapshot queues one vitals snapshot for delivery
func (h *VitalsHub) BroadcastSnapshot(sessionID string, snapshot vitals.VitalsSnapshot) {
	msg := &VitalsMessage{
		SessionID:           sessionID,
		SpO2:                snapshot.SpO2,
		Pressure:            snapshot.PressureString(),
		HeartRate:           snapshot.HeartRate,
		SignalQuality:       snapshot.SignalQuality,
		ArrhythmiaStatus:    snapshot.ArrhythmiaStatusString(),
		LastArrhythmiaEvent: snapshot.LastArrhythmiaEvent,
		Timestamp:           time.Now().UTC(),
	}

	select {
	case h.broadcast <- msg:
	default:
		// Consumers are slower than the pipeline; drop rather than block it
	}
}

// ServeWs upgrades an HTTP request to a WebSocket consumer connection
func (h *VitalsHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		logger:    h.logger,
		sessionID: r.URL.Query().Get("session_id"),
	}

	client.hub.register <- client
	go client.writePump()
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(60 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush queued messages into the same frame
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
