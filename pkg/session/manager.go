package session

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/risk"
	"ppgmon-server/pkg/vitals"
)

// Config holds configuration for the session manager
type Config struct {
	MaxSessions     int           // Upper bound on concurrent sessions
	IdleTimeout     time.Duration // Idle time after which a session expires
	CleanupInterval time.Duration // How often the janitor scans for idle sessions
	Pipeline        vitals.PipelineConfig
	Risk            risk.Config
}

// DefaultConfig returns the default session manager configuration
func DefaultConfig() Config {
	return Config{
		MaxSessions:     100,
		IdleTimeout:     2 * time.Minute,
		CleanupInterval: 30 * time.Second,
		Pipeline:        vitals.DefaultPipelineConfig(),
		Risk:            risk.DefaultConfig(),
	}
}

// RawSample is one timestamped intensity reading submitted by a client
type RawSample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Session is one independent monitoring session. Each session owns its
// pipeline and risk aggregator; the mutex serializes access so the
// single-writer contract of the pipeline holds across HTTP handlers.
type Session struct {
	ID       string
	Pipeline *vitals.Pipeline
	Risk     *risk.Aggregator

	mu             sync.Mutex
	lastActive     time.Time
	lastEventCount int
	lastBeatCount  int64
}

// SnapshotHandler receives the latest snapshot after each processed batch
type SnapshotHandler func(sessionID string, snapshot vitals.VitalsSnapshot)

// ArrhythmiaHandler receives each newly signaled arrhythmia event
type ArrhythmiaHandler func(sessionID string, event vitals.ArrhythmiaEvent)

// Manager owns all monitoring sessions. Session state is never global:
// two sessions processing interleaved sample batches cannot interfere.
type Manager struct {
	logger *logrus.Logger
	config Config

	mu       sync.RWMutex
	sessions map[string]*Session

	onSnapshot   SnapshotHandler
	onArrhythmia ArrhythmiaHandler

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager
func NewManager(logger *logrus.Logger, config Config) *Manager {
	return &Manager{
		logger:   logger,
		config:   config,
		sessions: make(map[string]*Session),
		stopChan: make(chan struct{}),
	}
}

// OnSnapshot registers the snapshot broadcast handler
func (m *Manager) OnSnapshot(h SnapshotHandler) {
	m.onSnapshot = h
}

// OnArrhythmia registers the arrhythmia event handler
func (m *Manager) OnArrhythmia(h ArrhythmiaHandler) {
	m.onArrhythmia = h
}

// Create starts a new monitoring session and returns its ID
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.config.MaxSessions)
	}

	s := &Session{
		ID:         uuid.New().String(),
		Pipeline:   vitals.NewPipeline(m.config.Pipeline, m.logger),
		Risk:       risk.NewAggregator(m.config.Risk),
		lastActive: time.Now(),
	}
	m.sessions[s.ID] = s

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.logger.WithField("session_id", s.ID).Info("Monitoring session created")

	return s, nil
}

// Get returns the session with the given ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete removes a session
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.logger.WithField("session_id", id).Info("Monitoring session deleted")
	return true
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ProcessSamples feeds a batch of raw samples through a session's
// pipeline in arrival order and returns the resulting snapshot.
func (m *Manager) ProcessSamples(id string, samples []RawSample) (vitals.VitalsSnapshot, error) {
	s, ok := m.Get(id)
	if !ok {
		return vitals.VitalsSnapshot{}, fmt.Errorf("session %s not found", id)
	}

	rejected := 0
	for _, sample := range samples {
		if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
			rejected++
		}
	}

	s.mu.Lock()
	start := time.Now()
	var snapshot vitals.VitalsSnapshot
	for _, sample := range samples {
		snapshot = s.Pipeline.ProcessSample(sample.Value, sample.Timestamp)
		s.Risk.Add(sample.Timestamp, snapshot)
	}
	newEvents := snapshot.ArrhythmiaCount - s.lastEventCount
	s.lastEventCount = snapshot.ArrhythmiaCount
	newBeats := s.Pipeline.BeatCount() - s.lastBeatCount
	s.lastBeatCount = s.Pipeline.BeatCount()
	lastEvent := snapshot.LastArrhythmiaEvent
	s.lastActive = time.Now()
	s.mu.Unlock()

	metrics.SamplesProcessed.WithLabelValues(id).Add(float64(len(samples) - rejected))
	if rejected > 0 {
		metrics.SamplesRejected.WithLabelValues(id, "non_finite").Add(float64(rejected))
	}
	if newBeats > 0 {
		metrics.BeatsDetected.WithLabelValues(id).Add(float64(newBeats))
	}
	if !snapshot.PressureMeasured && snapshot.HeartRate > 0 {
		metrics.EstimatorRejections.WithLabelValues("blood_pressure", "no_reading").Inc()
	}
	metrics.SnapshotLatency.Observe(time.Since(start).Seconds())

	if newEvents > 0 && lastEvent != nil {
		metrics.ArrhythmiaEvents.WithLabelValues(id, string(lastEvent.Type)).Add(float64(newEvents))
		if m.onArrhythmia != nil {
			m.onArrhythmia(id, *lastEvent)
		}
	}
	if m.onSnapshot != nil {
		m.onSnapshot(id, snapshot)
	}

	return snapshot, nil
}

// ProcessBundle feeds an externally supplied RR bundle into a session
func (m *Manager) ProcessBundle(id string, bundle vitals.RRBundle) (vitals.VitalsSnapshot, error) {
	s, ok := m.Get(id)
	if !ok {
		return vitals.VitalsSnapshot{}, fmt.Errorf("session %s not found", id)
	}

	now := time.Now().UnixMilli()

	s.mu.Lock()
	snapshot := s.Pipeline.ProcessBundle(bundle, now)
	s.Risk.Add(now, snapshot)
	newEvents := snapshot.ArrhythmiaCount - s.lastEventCount
	s.lastEventCount = snapshot.ArrhythmiaCount
	lastEvent := snapshot.LastArrhythmiaEvent
	s.lastActive = time.Now()
	s.mu.Unlock()

	if newEvents > 0 && lastEvent != nil {
		metrics.ArrhythmiaEvents.WithLabelValues(id, string(lastEvent.Type)).Add(float64(newEvents))
		if m.onArrhythmia != nil {
			m.onArrhythmia(id, *lastEvent)
		}
	}
	if m.onSnapshot != nil {
		m.onSnapshot(id, snapshot)
	}

	return snapshot, nil
}

// Report returns the final risk classification for a session
func (m *Manager) Report(id string) (risk.Report, error) {
	s, ok := m.Get(id)
	if !ok {
		return risk.Report{}, fmt.Errorf("session %s not found", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Risk.Final(time.Now().UnixMilli()), nil
}

// Calibrate re-runs the learning phases of a session's estimators
func (m *Manager) Calibrate(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pipeline.Calibrate()
	return nil
}

// ResetSession clears all pipeline and risk state of a session
func (m *Manager) ResetSession(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pipeline.Reset()
	s.Risk.Reset()
	s.lastEventCount = 0
	s.lastBeatCount = 0
	return nil
}

// StartJanitor launches the background loop that expires idle sessions
func (m *Manager) StartJanitor() {
	go func() {
		ticker := time.NewTicker(m.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	cutoff := time.Now().Add(-m.config.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()

		if idle {
			delete(m.sessions, id)
			metrics.SessionsExpired.Inc()
			m.logger.WithField("session_id", id).Info("Idle session expired")
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}

// Stop halts the janitor loop
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
