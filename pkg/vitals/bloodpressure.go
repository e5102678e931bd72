package vitals

import (
	"math"

	"ppgmon-server/pkg/signal"
)

// BPConfig holds configuration for the blood pressure estimator
type BPConfig struct {
	MinPeaks   int // Paired landmark requirements per update
	MinValleys int

	PTTClampMinMs  float64 // Plausible pulse-transit-time band
	PTTClampMaxMs  float64
	PTTHistorySize int     // Recent PTT samples used for the dispersion check
	MaxDispersion  float64 // stddev/mean above which the update is rejected

	BaseSystolic  float64 // Mapping anchor at the reference transit time
	BaseDiastolic float64
	PTTRefMs      float64
	SysPTTCoeff   float64 // Monotone-decreasing transit time term
	DiaPTTCoeff   float64
	SysAmpCoeff   float64 // Monotone-increasing amplitude term
	DiaAmpCoeff   float64
	SysStiffCoeff float64 // Arterial-stiffness term, centered on 5
	DiaStiffCoeff float64

	NotchWeight float64 // Dicrotic-notch share of the stiffness score
	DecayWeight float64 // Decay-slope share of the stiffness score

	SystolicMin      float64 // Hard physiological clamps
	SystolicMax      float64
	DiastolicMin     float64
	DiastolicMax     float64
	MinPulsePressure float64
	MaxPulsePressure float64

	HistorySize int     // Bounded reading history for smoothing
	DecayAlpha  float64 // Older readings weighted by alpha^age
}

// DefaultBPConfig returns the default estimator configuration
func DefaultBPConfig() BPConfig {
	return BPConfig{
		MinPeaks:   2,
		MinValleys: 2,

		PTTClampMinMs:  300,
		PTTClampMaxMs:  1200,
		PTTHistorySize: 8,
		MaxDispersion:  0.55,

		BaseSystolic:  120,
		BaseDiastolic: 80,
		PTTRefMs:      857,
		SysPTTCoeff:   0.12,
		DiaPTTCoeff:   0.08,
		SysAmpCoeff:   0.45,
		DiaAmpCoeff:   0.30,
		SysStiffCoeff: 2.0,
		DiaStiffCoeff: 1.2,

		NotchWeight: 0.6,
		DecayWeight: 0.4,

		SystolicMin:      80,
		SystolicMax:      190,
		DiastolicMin:     50,
		DiastolicMax:     120,
		MinPulsePressure: 20,
		MaxPulsePressure: 80,

		HistorySize: 12,
		DecayAlpha:  0.72,
	}
}

type bpReading struct {
	systolic  float64
	diastolic float64
}

// BPEstimator derives systolic/diastolic estimates from pulse-transit
// time, waveform amplitude and an arterial-stiffness score. Unlike the
// SpO2 estimator it degrades to "no reading" rather than holding a
// stale value, because a stale pressure reading is more misleading
// than an explicit gap.
type BPEstimator struct {
	config BPConfig

	history []bpReading
	histLen int
	histPos int

	pttHistory []float64
	pttLen     int
	pttPos     int

	ptts []float64 // scratch for per-update transit-time deltas
}

// NewBPEstimator creates a blood pressure estimator
func NewBPEstimator(config BPConfig) *BPEstimator {
	if config.HistorySize < 1 {
		config.HistorySize = 1
	}
	if config.PTTHistorySize < 2 {
		config.PTTHistorySize = 2
	}
	return &BPEstimator{
		config:     config,
		history:    make([]bpReading, config.HistorySize),
		pttHistory: make([]float64, config.PTTHistorySize),
		ptts:       make([]float64, 0, 16),
	}
}

// Update evaluates the landmark-bounded window and returns a smoothed
// systolic/diastolic pair, or ok=false when no trustworthy reading can
// be produced this cycle.
func (e *BPEstimator) Update(window []signal.FilteredSample, peaks, valleys []int) (systolic, diastolic int, ok bool) {
	if len(peaks) < e.config.MinPeaks || len(valleys) < e.config.MinValleys {
		return 0, 0, false
	}

	ptt, ok := e.transitTime(window, peaks)
	if !ok {
		return 0, 0, false
	}

	amplitude := e.amplitude(window, peaks, valleys)
	stiffness := e.stiffness(window, peaks)

	return e.mapAndSmooth(ptt, amplitude, stiffness)
}

// UpdateFromBundle computes a reading from an externally supplied RR
// bundle. Absent amplitudes skip the morphological terms entirely.
func (e *BPEstimator) UpdateFromBundle(bundle RRBundle) (systolic, diastolic int, ok bool) {
	if len(bundle.Intervals) < 2 {
		return 0, 0, false
	}

	e.ptts = append(e.ptts[:0], bundle.Intervals...)
	ptt, ok := e.reducePTT()
	if !ok {
		return 0, 0, false
	}

	amplitude := 0.0
	if len(bundle.Amplitudes) > 0 {
		amplitude = meanOf(bundle.Amplitudes)
	}

	// Neutral stiffness: no waveform to inspect
	return e.mapAndSmooth(ptt, amplitude, 5)
}

// transitTime reduces pairwise peak-to-peak deltas to one clamped value
func (e *BPEstimator) transitTime(window []signal.FilteredSample, peaks []int) (float64, bool) {
	e.ptts = e.ptts[:0]
	for i := 1; i < len(peaks); i++ {
		delta := float64(window[peaks[i]].Timestamp - window[peaks[i-1]].Timestamp)
		if delta > 0 {
			e.ptts = append(e.ptts, delta)
		}
	}
	return e.reducePTT()
}

func (e *BPEstimator) reducePTT() (float64, bool) {
	if len(e.ptts) == 0 {
		return 0, false
	}

	// Recency-weighted mean: newer deltas count more
	weightedSum := 0.0
	weightTotal := 0.0
	for i, d := range e.ptts {
		w := float64(i + 1)
		weightedSum += w * d
		weightTotal += w
	}
	ptt := weightedSum / weightTotal
	ptt = clampFloat(ptt, e.config.PTTClampMinMs, e.config.PTTClampMaxMs)

	e.pushPTT(ptt)

	// High transit-time jitter means the landmark detector is
	// unreliable this cycle; reject the whole update.
	if e.pttLen >= 2 {
		m := 0.0
		for i := 0; i < e.pttLen; i++ {
			m += e.pttHistory[i]
		}
		m /= float64(e.pttLen)
		if m > 0 {
			sumSq := 0.0
			for i := 0; i < e.pttLen; i++ {
				d := e.pttHistory[i] - m
				sumSq += d * d
			}
			if math.Sqrt(sumSq/float64(e.pttLen))/m > e.config.MaxDispersion {
				return 0, false
			}
		}
	}

	return ptt, true
}

func (e *BPEstimator) pushPTT(v float64) {
	if e.pttLen < len(e.pttHistory) {
		e.pttHistory[e.pttLen] = v
		e.pttLen++
		return
	}
	e.pttHistory[e.pttPos] = v
	e.pttPos = (e.pttPos + 1) % len(e.pttHistory)
}

// amplitude is the mean peak-minus-valley height over paired landmarks
func (e *BPEstimator) amplitude(window []signal.FilteredSample, peaks, valleys []int) float64 {
	pairs := len(peaks)
	if len(valleys) < pairs {
		pairs = len(valleys)
	}
	sum := 0.0
	for i := 0; i < pairs; i++ {
		sum += math.Abs(window[peaks[i]].Value - window[valleys[i]].Value)
	}
	return sum / float64(pairs)
}

// stiffness scores arterial stiffness in [0,10] from two morphological
// cues per detected pulse: dicrotic notch depth in the later third of
// the pulse (deeper notch means lower stiffness) and the maximum
// downward slope of the decay phase (steeper means higher stiffness).
func (e *BPEstimator) stiffness(window []signal.FilteredSample, peaks []int) float64 {
	total := 0.0
	pulses := 0

	for p := 1; p < len(peaks); p++ {
		start, end := peaks[p-1], peaks[p]
		if end-start < 6 {
			continue
		}

		peakVal := window[start].Value
		minVal := peakVal
		maxDrop := 0.0
		for i := start + 1; i <= end; i++ {
			if window[i].Value < minVal {
				minVal = window[i].Value
			}
			drop := window[i-1].Value - window[i].Value
			if drop > maxDrop {
				maxDrop = drop
			}
		}
		pulseAmp := peakVal - minVal
		if pulseAmp <= 0 {
			continue
		}

		// Dicrotic notch: local minimum in the later third of the pulse
		notchScore := 8.0 // no notch reads as stiff
		lateStart := start + 2*(end-start)/3
		for i := lateStart + 1; i < end; i++ {
			if window[i].Value < window[i-1].Value && window[i].Value < window[i+1].Value {
				depth := (peakVal - window[i].Value) / pulseAmp
				notchScore = clampFloat(10*(1-depth), 0, 10)
				break
			}
		}

		decayScore := clampFloat(maxDrop/pulseAmp*10/0.4, 0, 10)

		total += e.config.NotchWeight*notchScore + e.config.DecayWeight*decayScore
		pulses++
	}

	if pulses == 0 {
		return 5
	}
	return clampFloat(total/float64(pulses), 0, 10)
}

// mapAndSmooth maps the feature triple to pressure, clamps it into the
// physiological band and blends it into the bounded reading history.
func (e *BPEstimator) mapAndSmooth(ptt, amplitude, stiffness float64) (int, int, bool) {
	cfg := e.config

	sys := cfg.BaseSystolic - cfg.SysPTTCoeff*(ptt-cfg.PTTRefMs) + cfg.SysAmpCoeff*amplitude + cfg.SysStiffCoeff*(stiffness-5)
	dia := cfg.BaseDiastolic - cfg.DiaPTTCoeff*(ptt-cfg.PTTRefMs) + cfg.DiaAmpCoeff*amplitude + cfg.DiaStiffCoeff*(stiffness-5)

	sys, dia = e.clampPair(sys, dia)

	e.pushReading(bpReading{systolic: sys, diastolic: dia})

	// Exponentially decaying weights across the bounded history
	weightedSys, weightedDia, weightTotal := 0.0, 0.0, 0.0
	for i := 0; i < e.histLen; i++ {
		age := e.histLen - 1 - i
		w := math.Pow(cfg.DecayAlpha, float64(age))
		r := e.readingAt(i)
		weightedSys += w * r.systolic
		weightedDia += w * r.diastolic
		weightTotal += w
	}

	sys, dia = e.clampPair(weightedSys/weightTotal, weightedDia/weightTotal)
	return int(math.Round(sys)), int(math.Round(dia)), true
}

// clampPair enforces the physiological bands and the pulse-pressure
// differential so that systolic >= diastolic + minimum for all inputs.
func (e *BPEstimator) clampPair(sys, dia float64) (float64, float64) {
	cfg := e.config

	sys = clampFloat(sys, cfg.SystolicMin, cfg.SystolicMax)
	dia = clampFloat(dia, cfg.DiastolicMin, cfg.DiastolicMax)

	if sys-dia < cfg.MinPulsePressure {
		dia = sys - cfg.MinPulsePressure
	} else if sys-dia > cfg.MaxPulsePressure {
		dia = sys - cfg.MaxPulsePressure
	}

	if dia < cfg.DiastolicMin {
		dia = cfg.DiastolicMin
		if sys < dia+cfg.MinPulsePressure {
			sys = clampFloat(dia+cfg.MinPulsePressure, cfg.SystolicMin, cfg.SystolicMax)
		}
	}
	if dia > cfg.DiastolicMax {
		dia = cfg.DiastolicMax
	}

	return sys, dia
}

func (e *BPEstimator) pushReading(r bpReading) {
	if e.histLen < len(e.history) {
		e.history[(e.histPos+e.histLen)%len(e.history)] = r
		e.histLen++
		return
	}
	e.history[e.histPos] = r
	e.histPos = (e.histPos + 1) % len(e.history)
}

func (e *BPEstimator) readingAt(i int) bpReading {
	return e.history[(e.histPos+i)%len(e.history)]
}

// Reset clears all estimator state
func (e *BPEstimator) Reset() {
	e.histLen = 0
	e.histPos = 0
	e.pttLen = 0
	e.pttPos = 0
}
