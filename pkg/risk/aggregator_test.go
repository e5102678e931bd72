package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ppgmon-server/pkg/vitals"
)

func TestClassifyBands(t *testing.T) {
	assert.Equal(t, SeveritySevere, classify(heartRateBands, 35))
	assert.Equal(t, SeverityMild, classify(heartRateBands, 45))
	assert.Equal(t, SeverityNormal, classify(heartRateBands, 72))
	assert.Equal(t, SeverityMild, classify(heartRateBands, 120))
	assert.Equal(t, SeveritySevere, classify(heartRateBands, 160))

	assert.Equal(t, SeveritySevere, classify(spo2Bands, 88))
	assert.Equal(t, SeverityMild, classify(spo2Bands, 92))
	assert.Equal(t, SeverityNormal, classify(spo2Bands, 97))

	assert.Equal(t, SeverityNormal, classify(systolicBands, 118))
	assert.Equal(t, SeverityMild, classify(systolicBands, 150))
	assert.Equal(t, SeveritySevere, classify(diastolicBands, 45))
	assert.Equal(t, SeverityNormal, classify(diastolicBands, 75))
}

func TestSegmentRendering(t *testing.T) {
	assert.Equal(t, Segment{Color: "green", Label: "Normal"}, SegmentFor(SeverityNormal))
	assert.Equal(t, Segment{Color: "amber", Label: "Mild Risk"}, SegmentFor(SeverityMild))
	assert.Equal(t, Segment{Color: "red", Label: "Severe Risk"}, SegmentFor(SeveritySevere))
	assert.Equal(t, Segment{Color: "gray", Label: "Measuring"}, SegmentFor(SeverityUnknown))
}

func hrSnapshot(bpm int) vitals.VitalsSnapshot {
	return vitals.VitalsSnapshot{HeartRate: bpm}
}

func TestAggregatorStabilityGate(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	// 1. Nothing committed before the minimum sample count
	agg.Add(0, hrSnapshot(72))
	agg.Add(1000, hrSnapshot(72))
	assert.Equal(t, "Measuring", agg.Current().HeartRate.Label)

	// 2. Three stable samples inside the window commit the band
	agg.Add(2000, hrSnapshot(72))
	assert.Equal(t, "Normal", agg.Current().HeartRate.Label)
	assert.Equal(t, "green", agg.Current().HeartRate.Color)

	// 3. Vitals never added stay unmeasured
	assert.Equal(t, "Measuring", agg.Current().SpO2.Label)
}

func TestAggregatorIgnoresUnmeasuredValues(t *testing.T) {
	agg := NewAggregator(DefaultConfig())

	// Zero heart rate, zero SpO2 and unmeasured pressure are gaps, not
	// readings
	for ts := int64(0); ts <= 4000; ts += 1000 {
		agg.Add(ts, vitals.VitalsSnapshot{HeartRate: 0, SpO2: 0, PressureMeasured: false, Systolic: 120, Diastolic: 80})
	}
	report := agg.Current()
	assert.Equal(t, "Measuring", report.HeartRate.Label)
	assert.Equal(t, "Measuring", report.SpO2.Label)
	assert.Equal(t, "Measuring", report.Systolic.Label)
	assert.Equal(t, "Measuring", report.Diastolic.Label)
}

func TestAggregatorResistsFlicker(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 4000; ts += 1000 {
		agg.Add(ts, hrSnapshot(72))
	}
	assert.Equal(t, "Normal", agg.Current().HeartRate.Label)

	// One noisy instant does not flip the committed label
	agg.Add(4500, hrSnapshot(150))
	assert.Equal(t, "Normal", agg.Current().HeartRate.Label)
}

func TestAggregatorCommitsSustainedChange(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 4000; ts += 1000 {
		agg.Add(ts, hrSnapshot(72))
	}
	assert.Equal(t, "Normal", agg.Current().HeartRate.Label)

	// The rate stays severe long enough for the old samples to age out
	// of the stability window; the committed label follows
	for ts := int64(10000); ts <= 16000; ts += 1000 {
		agg.Add(ts, hrSnapshot(150))
	}
	assert.Equal(t, "Severe Risk", agg.Current().HeartRate.Label)
	assert.Equal(t, "red", agg.Current().HeartRate.Color)
}

func TestAggregatorCommitsHighSideBands(t *testing.T) {
	// Severities repeat across bands (tachycardia and bradycardia are
	// both severe); sustained high-side readings must commit their own
	// band, not be checked against the low-side one.

	// 1. Mild tachycardia (110-139) commits amber
	agg := NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 6000; ts += 1000 {
		agg.Add(ts, hrSnapshot(120))
	}
	assert.Equal(t, "Mild Risk", agg.Current().HeartRate.Label)
	assert.Equal(t, "amber", agg.Current().HeartRate.Color)

	// 2. Severe tachycardia (>=140) commits red
	agg = NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 6000; ts += 1000 {
		agg.Add(ts, hrSnapshot(150))
	}
	assert.Equal(t, "Severe Risk", agg.Current().HeartRate.Label)

	// 3. Hypertensive pressure commits its high-side bands too
	agg = NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 6000; ts += 1000 {
		agg.Add(ts, vitals.VitalsSnapshot{PressureMeasured: true, Systolic: 150, Diastolic: 95})
	}
	assert.Equal(t, "Mild Risk", agg.Current().Systolic.Label)
	assert.Equal(t, "Mild Risk", agg.Current().Diastolic.Label)
}

func TestAggregatorFinalReport(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 4000; ts += 1000 {
		agg.Add(ts, vitals.VitalsSnapshot{SpO2: 96})
	}

	// 1. Samples inside the final window average normally
	report := agg.Final(5000)
	assert.Equal(t, "Normal", report.SpO2.Label)

	// 2. A final read long after the last sample falls back to the most
	// frequently observed band instead of reporting nothing
	report = agg.Final(200000)
	assert.Equal(t, "Normal", report.SpO2.Label)

	// 3. Vitals that never reported stay unknown
	assert.Equal(t, "Measuring", report.HeartRate.Label)
}

func TestAggregatorPruneAndCapacity(t *testing.T) {
	config := DefaultConfig()
	config.HistoryCapacity = 4
	agg := NewAggregator(config)

	for ts := int64(0); ts < 10000; ts += 1000 {
		agg.Add(ts, hrSnapshot(72))
	}
	assert.LessOrEqual(t, len(agg.heartRate.samples), 4, "History must respect the hard capacity")

	// Entries older than the measurement window are dropped
	agg.Add(100000, hrSnapshot(72))
	assert.Equal(t, 1, len(agg.heartRate.samples))
}

func TestAggregatorReset(t *testing.T) {
	agg := NewAggregator(DefaultConfig())
	for ts := int64(0); ts <= 4000; ts += 1000 {
		agg.Add(ts, hrSnapshot(72))
	}
	assert.Equal(t, "Normal", agg.Current().HeartRate.Label)

	agg.Reset()
	assert.Equal(t, "Measuring", agg.Current().HeartRate.Label)
	assert.Empty(t, agg.heartRate.samples)
}
