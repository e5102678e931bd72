package util

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration defines the structure for storing application configuration
type Configuration struct {
	// HTTP server configuration
	HTTPPort          int
	HTTPEnabled       bool
	HTTPEnableMetrics bool

	// Session limits
	MaxSessions        int
	SessionIdleTimeout time.Duration

	// Logging
	LogLevel logrus.Level

	// AMQP configuration
	AMQPUrl       string
	AMQPQueueName string
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig(logger *logrus.Logger) (*Configuration, error) {
	// A missing .env file is fine; the environment may be set directly
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment")
	}

	config := &Configuration{}

	httpPortStr := os.Getenv("HTTP_PORT")
	if httpPortStr != "" {
		port, err := strconv.Atoi(httpPortStr)
		if err != nil {
			logger.Warn("Invalid HTTP_PORT specified; using default port 8080")
			config.HTTPPort = 8080
		} else {
			config.HTTPPort = port
		}
	} else {
		config.HTTPPort = 8080
	}

	config.HTTPEnabled = os.Getenv("HTTP_ENABLED") != "false"
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false"

	maxSessions := os.Getenv("MAX_SESSIONS")
	if maxSessions != "" {
		n, err := strconv.Atoi(maxSessions)
		if err != nil || n <= 0 {
			logger.Warn("Invalid MAX_SESSIONS; setting default to 100")
			config.MaxSessions = 100
		} else {
			config.MaxSessions = n
		}
	} else {
		config.MaxSessions = 100
	}

	idleTimeout := os.Getenv("SESSION_IDLE_TIMEOUT_SECONDS")
	if idleTimeout != "" {
		seconds, err := strconv.Atoi(idleTimeout)
		if err != nil || seconds <= 0 {
			logger.Warn("Invalid SESSION_IDLE_TIMEOUT_SECONDS; setting default to 120")
			config.SessionIdleTimeout = 120 * time.Second
		} else {
			config.SessionIdleTimeout = time.Duration(seconds) * time.Second
		}
	} else {
		config.SessionIdleTimeout = 120 * time.Second
	}

	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", logLevelStr)
		config.LogLevel = logrus.InfoLevel
	} else {
		config.LogLevel = level
	}

	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPQueueName = os.Getenv("AMQP_QUEUE_NAME")
	if config.AMQPUrl == "" || config.AMQPQueueName == "" {
		logger.Info("AMQP_URL or AMQP_QUEUE_NAME not set, alert publishing will be disabled")
	}

	return config, nil
}
