package vitals

import "math"

// ArrhythmiaConfig holds configuration for the arrhythmia classifier
type ArrhythmiaConfig struct {
	LearningDurationMs    int64   // Learning phase length by elapsed time
	LearningIntervalCount int     // Learning phase length by interval count
	MinIntervals          int     // Minimum history before any detection
	RMSSDThresholdMs      float64 // RMSSD threshold for the generic detector
	AFRMSSDThresholdMs    float64 // Stricter RMSSD threshold for the AF path
	RRVariationThreshold  float64 // Relative deviation of the last interval
	CooldownMs            int64   // Minimum spacing between signaled events
	AFIrregularRatio      float64 // Share of successive diffs that must be large
	SuccessiveDiffMs      float64 // A successive diff counts as large above this
	PrematureShortRatio   float64 // Short beat bound relative to the mean
	PrematureLongRatio    float64 // Compensatory pause bound relative to the mean
}

// DefaultArrhythmiaConfig returns the default classifier configuration
func DefaultArrhythmiaConfig() ArrhythmiaConfig {
	return ArrhythmiaConfig{
		LearningDurationMs:    2500,
		LearningIntervalCount: 20,
		MinIntervals:          6,
		RMSSDThresholdMs:      30,
		AFRMSSDThresholdMs:    100,
		RRVariationThreshold:  0.20,
		CooldownMs:            1000,
		AFIrregularRatio:      0.70,
		SuccessiveDiffMs:      100,
		PrematureShortRatio:   0.80,
		PrematureLongRatio:    1.20,
	}
}

// ArrhythmiaClassifier evaluates RR-interval statistics for irregular
// rhythm. It starts in a learning phase during which intervals are
// accumulated but no detection result is emitted; the transition to the
// steady phase is monotonic and only an explicit Reset returns it to
// learning.
type ArrhythmiaClassifier struct {
	config ArrhythmiaConfig

	learning      bool
	learningStart int64
	seenIntervals int

	lastEventTime int64
	lastEvent     *ArrhythmiaEvent
	eventCount    int

	diffs []float64 // scratch for successive differences
}

// NewArrhythmiaClassifier creates a classifier in the learning phase
func NewArrhythmiaClassifier(config ArrhythmiaConfig) *ArrhythmiaClassifier {
	return &ArrhythmiaClassifier{
		config:   config,
		learning: true,
		diffs:    make([]float64, 0, 64),
	}
}

// Update evaluates the current interval history at time now (ms). It
// returns the status label and a non-nil event only when a new
// arrhythmia was signaled on this update.
func (c *ArrhythmiaClassifier) Update(intervals []float64, now int64) (string, *ArrhythmiaEvent) {
	if c.learning {
		if c.learningStart == 0 {
			c.learningStart = now
		}
		c.seenIntervals = len(intervals)

		elapsed := now - c.learningStart
		if elapsed < c.config.LearningDurationMs && c.seenIntervals < c.config.LearningIntervalCount {
			return StatusCalibrating, nil
		}
		c.learning = false
	}

	if len(intervals) < c.config.MinIntervals {
		return c.statusLabel(), nil
	}

	rmssd := RMSSD(intervals)
	meanInterval := meanOf(intervals)
	if meanInterval <= 0 {
		return c.statusLabel(), nil
	}

	last := intervals[len(intervals)-1]
	rrVariation := math.Abs(last-meanInterval) / meanInterval

	if rmssd <= c.config.RMSSDThresholdMs || rrVariation <= c.config.RRVariationThreshold {
		return c.statusLabel(), nil
	}

	// Debounce: one irregular beat must not generate a burst of events
	if c.lastEventTime != 0 && now-c.lastEventTime < c.config.CooldownMs {
		return c.statusLabel(), nil
	}

	event := &ArrhythmiaEvent{
		Timestamp:   now,
		RMSSD:       rmssd,
		RRVariation: rrVariation,
		Type:        c.classifyType(intervals, rmssd, meanInterval),
	}
	c.lastEventTime = now
	c.lastEvent = event
	c.eventCount++

	return StatusDetected, event
}

// classifyType inspects interval morphology to subtype the event
func (c *ArrhythmiaClassifier) classifyType(intervals []float64, rmssd, meanInterval float64) ArrhythmiaType {
	// AF-like: sustained high RMSSD with most successive differences large
	if rmssd > c.config.AFRMSSDThresholdMs {
		c.diffs = c.diffs[:0]
		large := 0
		for i := 1; i < len(intervals); i++ {
			d := math.Abs(intervals[i] - intervals[i-1])
			c.diffs = append(c.diffs, d)
			if d > c.config.SuccessiveDiffMs {
				large++
			}
		}
		if len(c.diffs) > 0 && float64(large)/float64(len(c.diffs)) >= c.config.AFIrregularRatio {
			return TypeAFibPattern
		}
	}

	// Premature beat: a short interval immediately followed by a
	// compensatory pause. Classified when the pause lands; the return
	// to normal rhythm is covered by the cooldown.
	if len(intervals) >= 2 {
		short := intervals[len(intervals)-2]
		pause := intervals[len(intervals)-1]
		if short < c.config.PrematureShortRatio*meanInterval &&
			pause > c.config.PrematureLongRatio*meanInterval {
			return TypePrematureBeat
		}
	}

	return TypeIrregular
}

func (c *ArrhythmiaClassifier) statusLabel() string {
	if c.eventCount > 0 {
		return StatusDetected
	}
	return StatusNoArrhythmia
}

// Status returns the current label without running a detection pass
func (c *ArrhythmiaClassifier) Status() string {
	if c.learning {
		return StatusCalibrating
	}
	return c.statusLabel()
}

// EventCount returns the monotonic count of accepted events
func (c *ArrhythmiaClassifier) EventCount() int {
	return c.eventCount
}

// LastEvent returns the most recently signaled event, or nil
func (c *ArrhythmiaClassifier) LastEvent() *ArrhythmiaEvent {
	return c.lastEvent
}

// Learning reports whether the classifier is still calibrating
func (c *ArrhythmiaClassifier) Learning() bool {
	return c.learning
}

// Recalibrate re-runs the learning phase while preserving the
// monotonic event counter and the last signaled event.
func (c *ArrhythmiaClassifier) Recalibrate() {
	c.learning = true
	c.learningStart = 0
	c.seenIntervals = 0
}

// Reset returns the classifier to the learning phase and clears all
// detection state, including the event counter.
func (c *ArrhythmiaClassifier) Reset() {
	c.learning = true
	c.learningStart = 0
	c.seenIntervals = 0
	c.lastEventTime = 0
	c.lastEvent = nil
	c.eventCount = 0
}

// RMSSD computes the root-mean-square of successive interval differences
func RMSSD(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	sumSq := 0.0
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(intervals)-1))
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
