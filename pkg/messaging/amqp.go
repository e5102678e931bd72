package messaging

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/vitals"
)

// AlertPublisher publishes vitals alerts to a message broker
type AlertPublisher interface {
	PublishArrhythmia(sessionID string, event vitals.ArrhythmiaEvent) error
	IsConnected() bool
	Connect() error
	Disconnect()
}

// AlertMessage is the wire format for a published arrhythmia alert
type AlertMessage struct {
	SessionID   string    `json:"session_id"`
	Type        string    `json:"type"`
	RMSSD       float64   `json:"rmssd"`
	RRVariation float64   `json:"rr_variation"`
	DetectedAt  int64     `json:"detected_at"`
	PublishedAt time.Time `json:"published_at"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL        string
	QueueName  string
	RoutingKey string
	Durable    bool
}

// AMQPClient publishes alert messages over AMQP. When the broker is not
// configured the client stays disabled and every publish is a logged
// no-op, so the pipeline never depends on broker availability.
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes a connection to the AMQP server and declares the
// alert queue. It returns an error when the broker is unconfigured or
// unreachable; callers may treat that as non-fatal.
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || c.config.QueueName == "" {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, alert publishing disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		metrics.AMQPConnectionErrors.Inc()
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		metrics.AMQPConnectionErrors.Inc()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		c.config.QueueName,
		c.config.Durable,
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		metrics.AMQPConnectionErrors.Inc()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.connected = true

	// Reconnect when the broker drops the connection
	closeChan := make(chan *amqp.Error, 1)
	c.conn.NotifyClose(closeChan)
	go c.monitorConnection(closeChan)

	c.logger.WithField("queue", c.config.QueueName).Info("Connected to AMQP server")
	return nil
}

func (c *AMQPClient) monitorConnection(closeChan chan *amqp.Error) {
	select {
	case <-c.stopChan:
		return
	case err := <-closeChan:
		if err == nil {
			return
		}
		c.logger.WithError(err).Warn("AMQP connection lost, retrying")

		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()

		for {
			select {
			case <-c.stopChan:
				return
			case <-time.After(5 * time.Second):
			}
			if connErr := c.Connect(); connErr == nil {
				return
			}
		}
	}
}

// IsConnected reports whether the client currently holds a connection
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishArrhythmia publishes one arrhythmia alert
func (c *AMQPClient) PublishArrhythmia(sessionID string, event vitals.ArrhythmiaEvent) error {
	c.connMutex.RLock()
	channel := c.channel
	connected := c.connected
	c.connMutex.RUnlock()

	if !connected {
		c.logger.WithField("session_id", sessionID).Debug("AMQP not connected, dropping arrhythmia alert")
		return nil
	}

	msg := AlertMessage{
		SessionID:   sessionID,
		Type:        string(event.Type),
		RMSSD:       event.RMSSD,
		RRVariation: event.RRVariation,
		DetectedAt:  event.Timestamp,
		PublishedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert message: %w", err)
	}

	err = channel.Publish(
		"", // default exchange
		c.config.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	metrics.AMQPPublishedMessages.WithLabelValues("arrhythmia").Inc()
	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
