package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func steadyIntervals(n int, ms float64) []float64 {
	intervals := make([]float64, n)
	for i := range intervals {
		intervals[i] = ms
	}
	return intervals
}

func TestClassifierLearningPhase(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())
	assert.True(t, classifier.Learning())
	assert.Equal(t, StatusCalibrating, classifier.Status())

	// 1. Early updates stay in the learning phase
	status, event := classifier.Update(steadyIntervals(3, 660), 1000)
	assert.Equal(t, StatusCalibrating, status)
	assert.Nil(t, event)

	status, _ = classifier.Update(steadyIntervals(5, 660), 2000)
	assert.Equal(t, StatusCalibrating, status)

	// 2. After the learning duration elapses the steady phase begins
	status, event = classifier.Update(steadyIntervals(10, 660), 4000)
	assert.Equal(t, StatusNoArrhythmia, status)
	assert.Nil(t, event)
	assert.False(t, classifier.Learning())
}

func TestClassifierLearningEndsByIntervalCount(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())

	// Twenty intervals end learning even well inside the time budget
	status, _ := classifier.Update(steadyIntervals(20, 660), 1000)
	assert.Equal(t, StatusNoArrhythmia, status)
	assert.False(t, classifier.Learning())
}

func TestClassifierConstantSpacingNeverSignals(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())
	classifier.Update(steadyIntervals(10, 660), 1000)

	for now := int64(4000); now < 30000; now += 500 {
		status, event := classifier.Update(steadyIntervals(20, 660), now)
		assert.Equal(t, StatusNoArrhythmia, status)
		assert.Nil(t, event)
	}
	assert.Equal(t, 0, classifier.EventCount())
}

func TestClassifierSingleIrregularBeatSignalsOnce(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())
	base := steadyIntervals(10, 660)

	classifier.Update(base, 1000)
	status, event := classifier.Update(base, 4000)
	assert.Equal(t, StatusNoArrhythmia, status)
	assert.Nil(t, event)

	// 1. One short interval fires exactly one event
	irregular := append(append([]float64{}, base...), 330)
	status, event = classifier.Update(irregular, 4200)
	assert.Equal(t, StatusDetected, status)
	assert.NotNil(t, event)
	assert.Equal(t, TypeIrregular, event.Type)
	assert.Equal(t, 1, classifier.EventCount())
	assert.Greater(t, event.RMSSD, 30.0)
	assert.Greater(t, event.RRVariation, 0.20)

	// 2. The compensatory swing inside the cooldown is debounced
	irregular = append(irregular, 990)
	status, event = classifier.Update(irregular, 4700)
	assert.Equal(t, StatusDetected, status)
	assert.Nil(t, event)
	assert.Equal(t, 1, classifier.EventCount())

	// 3. Back to normal spacing after the cooldown: no further events,
	// but the detected label is sticky
	irregular = append(irregular, 660)
	status, event = classifier.Update(irregular, 6000)
	assert.Equal(t, StatusDetected, status)
	assert.Nil(t, event)
	assert.Equal(t, 1, classifier.EventCount())
}

func TestClassifierAFibPattern(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())

	// Alternating short/long intervals: every successive difference is
	// 500ms, far past the AF irregularity bar
	alternating := make([]float64, 20)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 400
		} else {
			alternating[i] = 900
		}
	}

	classifier.Update(steadyIntervals(5, 660), 1000)
	status, event := classifier.Update(alternating, 4000)
	assert.Equal(t, StatusDetected, status)
	assert.NotNil(t, event)
	assert.Equal(t, TypeAFibPattern, event.Type)
}

func TestClassifierPrematureBeat(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())

	// A short beat followed by a compensatory pause
	intervals := append(steadyIntervals(10, 660), 450, 850)

	classifier.Update(steadyIntervals(5, 660), 1000)
	status, event := classifier.Update(intervals, 4000)
	assert.Equal(t, StatusDetected, status)
	assert.NotNil(t, event)
	assert.Equal(t, TypePrematureBeat, event.Type)
}

func TestClassifierRecalibratePreservesCount(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())
	classifier.Update(steadyIntervals(10, 660), 1000)
	classifier.Update(append(steadyIntervals(10, 660), 330), 4000)
	assert.Equal(t, 1, classifier.EventCount())

	classifier.Recalibrate()
	assert.True(t, classifier.Learning())
	assert.Equal(t, StatusCalibrating, classifier.Status())
	assert.Equal(t, 1, classifier.EventCount(), "Recalibrate must keep the monotonic counter")
	assert.NotNil(t, classifier.LastEvent())

	// After learning ends again the sticky detected label returns
	classifier.Update(steadyIntervals(10, 660), 5000)
	status, _ := classifier.Update(steadyIntervals(10, 660), 8000)
	assert.Equal(t, StatusDetected, status)
}

func TestClassifierResetClearsEverything(t *testing.T) {
	classifier := NewArrhythmiaClassifier(DefaultArrhythmiaConfig())
	classifier.Update(steadyIntervals(10, 660), 1000)
	classifier.Update(append(steadyIntervals(10, 660), 330), 4000)

	classifier.Reset()
	assert.True(t, classifier.Learning())
	assert.Equal(t, 0, classifier.EventCount())
	assert.Nil(t, classifier.LastEvent())
	assert.Equal(t, StatusCalibrating, classifier.Status())
}

func TestRMSSD(t *testing.T) {
	assert.Equal(t, 0.0, RMSSD(nil))
	assert.Equal(t, 0.0, RMSSD([]float64{660}))
	assert.Equal(t, 0.0, RMSSD([]float64{660, 660, 660}))
	assert.InDelta(t, 100.0, RMSSD([]float64{600, 700, 600}), 1e-9)
}
