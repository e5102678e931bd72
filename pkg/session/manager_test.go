package session

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"ppgmon-server/pkg/metrics"
	"ppgmon-server/pkg/vitals"
)

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	metrics.Init(logger)
	return NewManager(logger, config)
}

// pulseBatch builds a batch of raw pulse samples at ~30 Hz with one
// beat per 20 samples.
func pulseBatch(n int, startMs int64) []RawSample {
	batch := make([]RawSample, n)
	for i := range batch {
		batch[i] = RawSample{
			Timestamp: startMs + int64(i)*33,
			Value:     100 + 10*math.Sin(2*math.Pi*float64(i)/20),
		}
	}
	return batch
}

func TestManagerCreateGetDelete(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	s, err := m.Create()
	assert.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Count())

	got, ok := m.Get(s.ID)
	assert.True(t, ok)
	assert.Equal(t, s.ID, got.ID)

	assert.True(t, m.Delete(s.ID))
	assert.False(t, m.Delete(s.ID), "Deleting twice should fail the second time")
	assert.Equal(t, 0, m.Count())
}

func TestManagerSessionLimit(t *testing.T) {
	config := DefaultConfig()
	config.MaxSessions = 1
	m := newTestManager(t, config)

	_, err := m.Create()
	assert.NoError(t, err)

	_, err = m.Create()
	assert.Error(t, err, "The session limit must be enforced")
}

func TestManagerProcessSamples(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s, _ := m.Create()

	snapshot, err := m.ProcessSamples(s.ID, pulseBatch(150, 0))
	assert.NoError(t, err)
	assert.Greater(t, snapshot.HeartRate, 0)

	_, err = m.ProcessSamples("no-such-session", pulseBatch(10, 0))
	assert.Error(t, err)
}

func TestManagerSessionIsolation(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s1, _ := m.Create()
	s2, _ := m.Create()

	snap1, err := m.ProcessSamples(s1.ID, pulseBatch(150, 0))
	assert.NoError(t, err)
	assert.Greater(t, snap1.HeartRate, 0)

	// The second session never saw a sample; its state is untouched
	assert.Equal(t, 0, s2.Pipeline.Snapshot().HeartRate)
	assert.Equal(t, vitals.StatusCalibrating, s2.Pipeline.Snapshot().ArrhythmiaStatus)
}

func TestManagerSnapshotCallback(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s, _ := m.Create()

	var gotID string
	var gotSnapshot vitals.VitalsSnapshot
	m.OnSnapshot(func(sessionID string, snapshot vitals.VitalsSnapshot) {
		gotID = sessionID
		gotSnapshot = snapshot
	})

	snapshot, err := m.ProcessSamples(s.ID, pulseBatch(60, 0))
	assert.NoError(t, err)
	assert.Equal(t, s.ID, gotID)
	assert.Equal(t, snapshot, gotSnapshot)
}

func TestManagerArrhythmiaCallback(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s, _ := m.Create()

	events := 0
	m.OnArrhythmia(func(sessionID string, event vitals.ArrhythmiaEvent) {
		events++
		assert.Equal(t, s.ID, sessionID)
	})

	regular := make([]float64, 10)
	for i := range regular {
		regular[i] = 660
	}

	// Learning, then steady, then one injected short interval
	_, err := m.ProcessBundle(s.ID, vitals.RRBundle{Intervals: regular})
	assert.NoError(t, err)

	// The bundle path stamps wall-clock time, so force the classifier
	// out of learning with an interval-count-sized history instead
	long := make([]float64, 25)
	for i := range long {
		long[i] = 660
	}
	_, err = m.ProcessBundle(s.ID, vitals.RRBundle{Intervals: long})
	assert.NoError(t, err)
	assert.Equal(t, 0, events)

	irregular := append(append([]float64{}, long...), 330)
	snapshot, err := m.ProcessBundle(s.ID, vitals.RRBundle{Intervals: irregular})
	assert.NoError(t, err)
	assert.Equal(t, 1, snapshot.ArrhythmiaCount)
	assert.Equal(t, 1, events)
}

func TestManagerCalibrateAndReset(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s, _ := m.Create()

	_, err := m.ProcessSamples(s.ID, pulseBatch(150, 0))
	assert.NoError(t, err)

	assert.NoError(t, m.Calibrate(s.ID))
	assert.Equal(t, vitals.StatusCalibrating, s.Pipeline.Snapshot().ArrhythmiaStatus)

	assert.NoError(t, m.ResetSession(s.ID))
	assert.Equal(t, 0, s.Pipeline.Snapshot().HeartRate)

	assert.Error(t, m.Calibrate("no-such-session"))
	assert.Error(t, m.ResetSession("no-such-session"))
}

func TestManagerReport(t *testing.T) {
	m := newTestManager(t, DefaultConfig())
	s, _ := m.Create()

	// A report with no samples reads as still measuring
	report, err := m.Report(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Measuring", report.HeartRate.Label)

	_, err = m.Report("no-such-session")
	assert.Error(t, err)
}
