package vitals

import (
	"math"
	"sort"
)

// SpO2Config holds configuration for the oxygen saturation estimator
type SpO2Config struct {
	MinSamples         int     // Minimum window fill before producing output
	MinPerfusionIndex  float64 // AC/DC ratio below which the signal is too weak
	CurveA             float64 // Empirical calibration curve: spo2 = A - B*R
	CurveB             float64
	CalibrationScale   float64 // Scale applied to the perfusion ratio
	ClampMin           float64 // Hard physiological floor
	ClampMax           float64 // Hard ceiling; capped below 100 to reflect single-channel limits
	RawBufferSize      int     // Rolling buffer of raw estimates for outlier rejection
	IQRMultiplier      float64 // Outliers fall outside median +/- IQRMultiplier*IQR
	SmoothingAlpha     float64 // Weight on the newly accepted value
	LearningDurationMs int64   // Calibration sub-state length
	CalibrationTarget  float64 // Baseline the learning-phase offset steers toward
	MaxOffset          float64 // Bound on the derived calibration offset
	MaxDegenerate      int     // Consecutive degenerate updates before self-reset
}

// DefaultSpO2Config returns the default estimator configuration
func DefaultSpO2Config() SpO2Config {
	return SpO2Config{
		MinSamples:         30,
		MinPerfusionIndex:  0.05,
		CurveA:             110,
		CurveB:             18,
		CalibrationScale:   1.0,
		ClampMin:           85,
		ClampMax:           98,
		RawBufferSize:      10,
		IQRMultiplier:      1.5,
		SmoothingAlpha:     0.35,
		LearningDurationMs: 2500,
		CalibrationTarget:  97,
		MaxOffset:          3,
		MaxDegenerate:      5,
	}
}

// SpO2Estimator computes blood-oxygen saturation from the AC/DC
// perfusion ratio of the conditioned waveform. Weak or degenerate
// signal falls back to the last accepted value (0 before the first);
// raw estimates pass through IQR outlier rejection and exponential
// smoothing to bound frame-to-frame jitter.
type SpO2Estimator struct {
	config SpO2Config

	lastOutput float64

	rawBuf   []float64
	rawStart int
	rawSize  int

	learning      bool
	learningStart int64
	calValues     []float64
	offset        float64

	degenerate int

	scratch []float64 // sorted copy for IQR statistics
}

// NewSpO2Estimator creates an estimator in its calibration sub-state
func NewSpO2Estimator(config SpO2Config) *SpO2Estimator {
	if config.RawBufferSize < 1 {
		config.RawBufferSize = 1
	}
	return &SpO2Estimator{
		config:    config,
		rawBuf:    make([]float64, config.RawBufferSize),
		learning:  true,
		calValues: make([]float64, 0, 128),
		scratch:   make([]float64, 0, config.RawBufferSize),
	}
}

// Update processes the most recent conditioned window and returns the
// current SpO2 estimate. It never fails; insufficient or untrustworthy
// input returns the previous output.
func (e *SpO2Estimator) Update(window []float64, now int64) float64 {
	if len(window) < e.config.MinSamples {
		return e.lastOutput
	}

	min, max, mean := windowStats(window)
	ac := max - min
	dc := mean

	if math.Abs(dc) < 1e-9 || math.IsNaN(dc) || math.IsInf(dc, 0) {
		e.degenerate++
		if e.degenerate >= e.config.MaxDegenerate {
			e.Reset()
		}
		return e.lastOutput
	}
	e.degenerate = 0

	perfusion := ac / dc
	if perfusion < e.config.MinPerfusionIndex {
		// Signal too weak to trust; hold the last accepted value
		return e.lastOutput
	}

	ratio := perfusion * e.config.CalibrationScale
	raw := e.config.CurveA - e.config.CurveB*ratio

	if e.learning {
		if e.learningStart == 0 {
			e.learningStart = now
		}
		if now-e.learningStart < e.config.LearningDurationMs {
			if len(e.calValues) < cap(e.calValues) {
				e.calValues = append(e.calValues, raw)
			}
			return e.lastOutput
		}
		e.finishCalibration()
	}

	raw += e.offset
	raw = clampFloat(raw, e.config.ClampMin, e.config.ClampMax)

	e.pushRaw(raw)
	accepted := e.filteredAverage()

	if e.lastOutput == 0 {
		e.lastOutput = accepted
	} else {
		a := e.config.SmoothingAlpha
		e.lastOutput = a*accepted + (1-a)*e.lastOutput
	}

	return e.lastOutput
}

// finishCalibration derives the one-time offset from values collected
// during the learning phase and enters the steady phase.
func (e *SpO2Estimator) finishCalibration() {
	e.learning = false
	if len(e.calValues) == 0 {
		return
	}
	e.offset = clampFloat(e.config.CalibrationTarget-meanOf(e.calValues), -e.config.MaxOffset, e.config.MaxOffset)
}

func (e *SpO2Estimator) pushRaw(v float64) {
	if e.rawSize < len(e.rawBuf) {
		e.rawBuf[(e.rawStart+e.rawSize)%len(e.rawBuf)] = v
		e.rawSize++
		return
	}
	e.rawBuf[e.rawStart] = v
	e.rawStart = (e.rawStart + 1) % len(e.rawBuf)
}

// filteredAverage discards raw estimates outside median +/- k*IQR and
// averages the remainder.
func (e *SpO2Estimator) filteredAverage() float64 {
	e.scratch = e.scratch[:0]
	for i := 0; i < e.rawSize; i++ {
		e.scratch = append(e.scratch, e.rawBuf[(e.rawStart+i)%len(e.rawBuf)])
	}
	sort.Float64s(e.scratch)

	median := percentileSorted(e.scratch, 50)
	iqr := percentileSorted(e.scratch, 75) - percentileSorted(e.scratch, 25)
	lo := median - e.config.IQRMultiplier*iqr
	hi := median + e.config.IQRMultiplier*iqr

	sum := 0.0
	kept := 0
	for _, v := range e.scratch {
		if v >= lo && v <= hi {
			sum += v
			kept++
		}
	}
	if kept == 0 {
		return median
	}
	return sum / float64(kept)
}

// Current returns the last accepted output without running an update
func (e *SpO2Estimator) Current() float64 {
	return e.lastOutput
}

// Learning reports whether the estimator is still calibrating
func (e *SpO2Estimator) Learning() bool {
	return e.learning
}

// Calibrate re-runs the learning phase. The last accepted output is
// kept so consumers do not see a gap while recalibrating.
func (e *SpO2Estimator) Calibrate() {
	e.learning = true
	e.learningStart = 0
	e.calValues = e.calValues[:0]
	e.offset = 0
}

// Reset restores the estimator to its initial empty, learning state
func (e *SpO2Estimator) Reset() {
	e.lastOutput = 0
	e.rawStart = 0
	e.rawSize = 0
	e.learning = true
	e.learningStart = 0
	e.calValues = e.calValues[:0]
	e.offset = 0
	e.degenerate = 0
}

func windowStats(window []float64) (min, max, mean float64) {
	min = window[0]
	max = window[0]
	sum := 0.0
	for _, v := range window {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return min, max, sum / float64(len(window))
}

// percentileSorted returns the p-th percentile of an ascending slice
// using linear interpolation between ranks.
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
