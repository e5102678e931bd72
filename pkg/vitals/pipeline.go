package vitals

import (
	"math"

	"github.com/sirupsen/logrus"

	"ppgmon-server/pkg/signal"
)

// PipelineConfig holds configuration for the vitals pipeline
type PipelineConfig struct {
	RingCapacity       int   // Conditioned sample history (~10s at 30 Hz)
	WindowSize         int   // Analysis window for landmark detection (~2s)
	MinPeakSpacingMs   int64 // Minimum spacing between accepted peaks
	ThrottleIntervalMs int64 // Minimum spacing between full estimator updates

	Filter     signal.FilterConfig
	Detector   signal.DetectorConfig
	RR         RRConfig
	Arrhythmia ArrhythmiaConfig
	SpO2       SpO2Config
	BP         BPConfig
}

// DefaultPipelineConfig returns the default pipeline configuration
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RingCapacity:       300,
		WindowSize:         60,
		MinPeakSpacingMs:   300,
		ThrottleIntervalMs: 120,

		Filter:     signal.DefaultFilterConfig(),
		Detector:   signal.DefaultDetectorConfig(),
		RR:         DefaultRRConfig(),
		Arrhythmia: DefaultArrhythmiaConfig(),
		SpO2:       DefaultSpO2Config(),
		BP:         DefaultBPConfig(),
	}
}

// Pipeline is the single-writer vitals estimation pipeline. One logical
// stream of samples is processed strictly in arrival order; running two
// independent monitors means constructing two Pipelines. No method is
// safe to call concurrently with itself.
type Pipeline struct {
	config PipelineConfig
	logger *logrus.Logger

	filter     *signal.ConditioningFilter
	ring       *signal.Ring
	detector   *signal.LandmarkDetector
	tracker    *RRTracker
	classifier *ArrhythmiaClassifier
	spo2       *SpO2Estimator
	bp         *BPEstimator

	lastPeakSeen   int64
	lastUpdateTime int64
	beatCount      int64
	snapshot       VitalsSnapshot

	// Scratch buffers reused across updates
	windowBuf    []signal.FilteredSample
	valuesBuf    []float64
	peaksBuf     []int
	valleysBuf   []int
	intervalsBuf []float64
}

// NewPipeline constructs a pipeline with all components in their
// initial learning-phase, empty-history condition.
func NewPipeline(config PipelineConfig, logger *logrus.Logger) *Pipeline {
	p := &Pipeline{
		config:     config,
		logger:     logger,
		filter:     signal.NewConditioningFilter(config.Filter),
		ring:       signal.NewRing(config.RingCapacity),
		detector:   signal.NewLandmarkDetector(config.Detector),
		tracker:    NewRRTracker(config.RR),
		classifier: NewArrhythmiaClassifier(config.Arrhythmia),
		spo2:       NewSpO2Estimator(config.SpO2),
		bp:         NewBPEstimator(config.BP),

		windowBuf:    make([]signal.FilteredSample, 0, config.WindowSize),
		valuesBuf:    make([]float64, 0, config.WindowSize),
		peaksBuf:     make([]int, 0, 16),
		valleysBuf:   make([]int, 0, 16),
		intervalsBuf: make([]float64, 0, config.RR.HistorySize),
	}
	p.snapshot = p.baselineSnapshot()
	return p
}

func (p *Pipeline) baselineSnapshot() VitalsSnapshot {
	return VitalsSnapshot{
		ArrhythmiaStatus: p.classifier.Status(),
	}
}

// ProcessSample ingests one raw intensity sample taken at the given
// wall-clock millisecond timestamp and returns the current snapshot.
// It never fails: non-finite input is rejected at the boundary without
// touching any buffer, and all internal estimation failures resolve to
// each component's sentinel or fallback value.
func (p *Pipeline) ProcessSample(raw float64, now int64) VitalsSnapshot {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return p.snapshot
	}

	filtered := p.filter.Filter(raw)
	p.ring.Push(signal.FilteredSample{Timestamp: now, Value: filtered})

	// Advisory throttling: the ring has already received the sample, so
	// coalescing redundant estimator cycles does not affect correctness.
	if p.lastUpdateTime != 0 && now-p.lastUpdateTime < p.config.ThrottleIntervalMs {
		return p.snapshot
	}
	p.lastUpdateTime = now

	return p.update(now)
}

// update runs one full estimation cycle over the current window
func (p *Pipeline) update(now int64) VitalsSnapshot {
	p.windowBuf = p.ring.Window(p.config.WindowSize, p.windowBuf)
	p.valuesBuf = p.valuesBuf[:0]
	for _, s := range p.windowBuf {
		p.valuesBuf = append(p.valuesBuf, s.Value)
	}

	p.peaksBuf, p.valleysBuf = p.detector.Detect(p.valuesBuf, p.peaksBuf, p.valleysBuf)

	// Accept peaks not yet seen, subject to the minimum inter-peak
	// spacing that defends against over-detection.
	for _, idx := range p.peaksBuf {
		ts := p.windowBuf[idx].Timestamp
		if ts <= p.lastPeakSeen {
			continue
		}
		if p.lastPeakSeen != 0 && ts-p.lastPeakSeen < p.config.MinPeakSpacingMs {
			continue
		}
		p.tracker.AddPeak(ts)
		p.lastPeakSeen = ts
		p.beatCount++
	}

	p.intervalsBuf = p.tracker.Intervals(p.intervalsBuf)
	status, event := p.classifier.Update(p.intervalsBuf, now)
	if event != nil && p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"type":         event.Type,
			"rmssd":        event.RMSSD,
			"rr_variation": event.RRVariation,
		}).Info("Arrhythmia detected")
	}

	spo2 := p.spo2.Update(p.valuesBuf, now)
	systolic, diastolic, measured := p.bp.Update(p.windowBuf, p.peaksBuf, p.valleysBuf)

	p.snapshot = VitalsSnapshot{
		SpO2:                spo2,
		Systolic:            systolic,
		Diastolic:           diastolic,
		PressureMeasured:    measured,
		HeartRate:           p.tracker.SmoothedBPM(),
		SignalQuality:       p.detector.Quality(p.valuesBuf, p.peaksBuf, p.valleysBuf),
		ArrhythmiaStatus:    status,
		ArrhythmiaCount:     p.classifier.EventCount(),
		LastArrhythmiaEvent: p.classifier.LastEvent(),
	}
	return p.snapshot
}

// ProcessBundle ingests an externally supplied RR bundle, used when the
// beat tracker lives outside this pipeline instance. The arrhythmia
// classifier and blood pressure estimator run directly off the supplied
// intervals; amplitudes are optional.
func (p *Pipeline) ProcessBundle(bundle RRBundle, now int64) VitalsSnapshot {
	status, event := p.classifier.Update(bundle.Intervals, now)
	if event != nil && p.logger != nil {
		p.logger.WithField("type", event.Type).Info("Arrhythmia detected from external bundle")
	}

	systolic, diastolic, measured := p.bp.UpdateFromBundle(bundle)

	heartRate := 0
	if m := meanOf(bundle.Intervals); m > 0 {
		heartRate = int(math.Round(60000 / m))
	}

	p.snapshot = VitalsSnapshot{
		SpO2:                p.spo2.Current(),
		Systolic:            systolic,
		Diastolic:           diastolic,
		PressureMeasured:    measured,
		HeartRate:           heartRate,
		SignalQuality:       p.snapshot.SignalQuality,
		ArrhythmiaStatus:    status,
		ArrhythmiaCount:     p.classifier.EventCount(),
		LastArrhythmiaEvent: p.classifier.LastEvent(),
	}
	return p.snapshot
}

// Snapshot returns the most recent vitals snapshot
func (p *Pipeline) Snapshot() VitalsSnapshot {
	return p.snapshot
}

// BeatCount returns the cumulative number of accepted heartbeat peaks
func (p *Pipeline) BeatCount() int64 {
	return p.beatCount
}

// Calibrate re-runs the learning phases of the calibrating estimators
// without discarding the monotonic arrhythmia event counter.
func (p *Pipeline) Calibrate() {
	p.spo2.Calibrate()
	p.classifier.Recalibrate()
	p.snapshot.ArrhythmiaStatus = p.classifier.Status()
}

// Reset synchronously clears all buffers and state back to the initial
// learning-phase condition. It is idempotent and callable at any time.
func (p *Pipeline) Reset() {
	p.filter.Reset()
	p.ring.Reset()
	p.tracker.Reset()
	p.classifier.Reset()
	p.spo2.Reset()
	p.bp.Reset()
	p.lastPeakSeen = 0
	p.lastUpdateTime = 0
	p.beatCount = 0
	p.snapshot = p.baselineSnapshot()
}
