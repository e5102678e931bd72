package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ppgmon-server/pkg/messaging"
	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/session"
	"ppgmon-server/pkg/vitals"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int
	EnableMetrics bool
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultServerConfig returns sensible server defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:          8080,
		EnableMetrics: true,
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// Server exposes the monitoring API, health, metrics and the vitals
// WebSocket stream.
type Server struct {
	logger    *logrus.Logger
	config    ServerConfig
	manager   *session.Manager
	hub       *VitalsHub
	alerts    messaging.AlertPublisher
	server    *http.Server
	startTime time.Time
}

// NewServer creates the HTTP server
func NewServer(logger *logrus.Logger, config ServerConfig, manager *session.Manager, hub *VitalsHub, alerts messaging.AlertPublisher) *Server {
	return &Server{
		logger:    logger,
		config:    config,
		manager:   manager,
		hub:       hub,
		alerts:    alerts,
		startTime: time.Now(),
	}
}

// Routes builds the request multiplexer
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /ws", s.hub.ServeWs)

	if s.config.EnableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.HandleFunc("POST /api/sessions", s.createSessionHandler)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.deleteSessionHandler)
	mux.HandleFunc("POST /api/sessions/{id}/samples", s.samplesHandler)
	mux.HandleFunc("POST /api/sessions/{id}/bundle", s.bundleHandler)
	mux.HandleFunc("GET /api/sessions/{id}/report", s.reportHandler)
	mux.HandleFunc("POST /api/sessions/{id}/calibrate", s.calibrateHandler)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.resetHandler)

	return mux
}

// Start runs the HTTP server until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.config.Port).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// createSessionHandler starts a new monitoring session
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create()
	if err != nil {
		s.writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

// deleteSessionHandler ends a monitoring session
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Delete(r.PathValue("id")) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// samplesRequest is a batch of raw intensity samples
type samplesRequest struct {
	Samples []session.RawSample `json:"samples"`
}

// snapshotResponse renders a vitals snapshot in its output string form
type snapshotResponse struct {
	SpO2                float64                 `json:"spo2"`
	Pressure            string                  `json:"pressure"`
	HeartRate           int                     `json:"heart_rate"`
	SignalQuality       float64                 `json:"signal_quality"`
	ArrhythmiaStatus    string                  `json:"arrhythmia_status"`
	LastArrhythmiaEvent *vitals.ArrhythmiaEvent `json:"last_arrhythmia_event,omitempty"`
}

func renderSnapshot(snapshot vitals.VitalsSnapshot) snapshotResponse {
	return snapshotResponse{
		SpO2:                snapshot.SpO2,
		Pressure:            snapshot.PressureString(),
		HeartRate:           snapshot.HeartRate,
		SignalQuality:       snapshot.SignalQuality,
		ArrhythmiaStatus:    snapshot.ArrhythmiaStatusString(),
		LastArrhythmiaEvent: snapshot.LastArrhythmiaEvent,
	}
}

// samplesHandler ingests a batch of samples into a session's pipeline
func (s *Server) samplesHandler(w http.ResponseWriter, r *http.Request) {
	var req samplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Samples) == 0 {
		s.writeError(w, http.StatusBadRequest, "no samples provided")
		return
	}

	snapshot, err := s.manager.ProcessSamples(r.PathValue("id"), req.Samples)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, renderSnapshot(snapshot))
}

// bundleHandler ingests an externally computed RR-interval bundle
func (s *Server) bundleHandler(w http.ResponseWriter, r *http.Request) {
	var bundle vitals.RRBundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	snapshot, err := s.manager.ProcessBundle(r.PathValue("id"), bundle)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, renderSnapshot(snapshot))
}

// reportHandler returns the final risk classification for a session
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.manager.Report(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// calibrateHandler re-runs the learning phases of a session's estimators
func (s *Server) calibrateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Calibrate(r.PathValue("id")); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resetHandler clears all state of a session
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.ResetSession(r.PathValue("id")); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
