package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Sample ingestion metrics
	SamplesProcessed *prometheus.CounterVec
	SamplesRejected  *prometheus.CounterVec

	// Beat and arrhythmia metrics
	BeatsDetected    *prometheus.CounterVec
	ArrhythmiaEvents *prometheus.CounterVec

	// Estimator metrics
	EstimatorRejections *prometheus.CounterVec
	SnapshotLatency     prometheus.Histogram

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter

	// Consumer metrics
	WSClientsConnected    prometheus.Gauge
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  prometheus.Counter
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		SamplesProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_samples_processed_total",
				Help: "Total number of intensity samples processed",
			},
			[]string{"session_id"},
		)

		SamplesRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_samples_rejected_total",
				Help: "Total number of samples rejected at the input boundary",
			},
			[]string{"session_id", "reason"},
		)

		BeatsDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_beats_detected_total",
				Help: "Total number of accepted heartbeat peaks",
			},
			[]string{"session_id"},
		)

		ArrhythmiaEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_arrhythmia_events_total",
				Help: "Total number of signaled arrhythmia events",
			},
			[]string{"session_id", "type"},
		)

		EstimatorRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_estimator_rejections_total",
				Help: "Estimator updates rejected as weak or implausible",
			},
			[]string{"estimator", "reason"},
		)

		SnapshotLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ppgmon_snapshot_latency_seconds",
				Help:    "Time taken to process one sample batch into a snapshot",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
			},
		)

		ActiveSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ppgmon_sessions_active",
				Help: "Number of active monitoring sessions",
			},
		)

		SessionsCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ppgmon_sessions_created_total",
				Help: "Total number of monitoring sessions created",
			},
		)

		SessionsExpired = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ppgmon_sessions_expired_total",
				Help: "Total number of sessions removed by the idle janitor",
			},
		)

		WSClientsConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ppgmon_websocket_clients",
				Help: "Number of connected WebSocket consumers",
			},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ppgmon_amqp_published_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"kind"},
		)

		AMQPConnectionErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ppgmon_amqp_connection_errors_total",
				Help: "Total number of AMQP connection failures",
			},
		)

		registry.MustRegister(
			SamplesProcessed,
			SamplesRejected,
			BeatsDetected,
			ArrhythmiaEvents,
			EstimatorRejections,
			SnapshotLatency,
			ActiveSessions,
			SessionsCreated,
			SessionsExpired,
			WSClientsConnected,
			AMQPPublishedMessages,
			AMQPConnectionErrors,
		)

		logger.Debug("Prometheus metrics initialized")
	})
}

// Handler returns the HTTP handler serving the metrics registry
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
