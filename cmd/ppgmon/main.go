package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	http_server "ppgmon-server/pkg/http"
	"ppgmon-server/pkg/messaging"
	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/session"
	"ppgmon-server/pkg/util"
	"ppgmon-server/pkg/vitals"
)

var logger = logrus.New()

func main() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	config, err := util.LoadConfig(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(config.LogLevel)

	metrics.Init(logger)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Session manager owning one pipeline + risk aggregator per session
	sessionConfig := session.DefaultConfig()
	sessionConfig.MaxSessions = config.MaxSessions
	sessionConfig.IdleTimeout = config.SessionIdleTimeout
	manager := session.NewManager(logger, sessionConfig)
	manager.StartJanitor()
	defer manager.Stop()

	// WebSocket hub pushing snapshots to consumers
	hub := http_server.NewVitalsHub(logger)
	go hub.Run(rootCtx)
	manager.OnSnapshot(hub.BroadcastSnapshot)

	// AMQP alert publisher; a missing broker disables alerts but never
	// blocks the pipeline
	amqpClient := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:       config.AMQPUrl,
		QueueName: config.AMQPQueueName,
	})
	if err := amqpClient.Connect(); err != nil {
		logger.WithError(err).Warn("AMQP unavailable, continuing without alert publishing")
	}
	defer amqpClient.Disconnect()

	manager.OnArrhythmia(func(sessionID string, event vitals.ArrhythmiaEvent) {
		if err := amqpClient.PublishArrhythmia(sessionID, event); err != nil {
			logger.WithError(err).WithField("session_id", sessionID).Error("Failed to publish arrhythmia alert")
		}
	})

	if !config.HTTPEnabled {
		logger.Warn("HTTP server disabled, nothing to serve")
		waitForShutdown(rootCancel)
		return
	}

	serverConfig := http_server.DefaultServerConfig()
	serverConfig.Port = config.HTTPPort
	serverConfig.EnableMetrics = config.HTTPEnableMetrics
	server := http_server.NewServer(logger, serverConfig, manager, hub, amqpClient)

	go waitForShutdown(rootCancel)

	if err := server.Start(rootCtx); err != nil {
		logger.WithError(err).Fatal("HTTP server failed")
	}

	logger.Info("Shutdown complete")
}

// waitForShutdown cancels the root context on SIGINT/SIGTERM
func waitForShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Shutting down")
	cancel()
}
