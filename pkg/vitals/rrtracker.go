package vitals

import "math"

// TrackerState is the beat tracker's acquisition state
type TrackerState int

const (
	// TrackerIdle means no peak has been seen yet
	TrackerIdle TrackerState = iota
	// TrackerArmed means the first peak has been seen but no interval exists
	TrackerArmed
	// TrackerTracking means at least one valid interval has been accepted
	TrackerTracking
)

// RRConfig holds configuration for the heartbeat and RR-interval tracker
type RRConfig struct {
	MinIntervalMs   float64 // Shortest physiological RR interval (180 bpm)
	MaxIntervalMs   float64 // Longest physiological RR interval (40 bpm)
	HistorySize     int     // Bounded RR history capacity
	SmoothingWindow int     // Recent intervals averaged for the bpm estimate
}

// DefaultRRConfig returns the default tracker configuration
func DefaultRRConfig() RRConfig {
	return RRConfig{
		MinIntervalMs:   300,
		MaxIntervalMs:   2000,
		HistorySize:     30,
		SmoothingWindow: 5,
	}
}

// RRTracker converts accepted peak timestamps into inter-beat intervals
// and an instantaneous heart rate. Intervals outside the physiological
// band are discarded, not clamped; the last-peak time still advances so
// a single bad interval cannot skew every interval that follows it.
type RRTracker struct {
	config RRConfig

	state        TrackerState
	lastPeakTime int64

	intervals []float64
	start     int
	size      int
}

// NewRRTracker creates a tracker with the given configuration
func NewRRTracker(config RRConfig) *RRTracker {
	if config.HistorySize < 1 {
		config.HistorySize = 1
	}
	return &RRTracker{
		config:    config,
		intervals: make([]float64, config.HistorySize),
	}
}

// AddPeak records a newly accepted peak timestamp (milliseconds).
// It returns the interval it accepted and true, or 0 and false when the
// peak produced no valid interval.
func (t *RRTracker) AddPeak(timestamp int64) (float64, bool) {
	switch t.state {
	case TrackerIdle:
		t.lastPeakTime = timestamp
		t.state = TrackerArmed
		return 0, false

	default:
		interval := float64(timestamp - t.lastPeakTime)
		// Always advance the last-peak time so one discarded interval
		// does not poison the next measurement.
		t.lastPeakTime = timestamp

		if interval < t.config.MinIntervalMs || interval > t.config.MaxIntervalMs {
			return 0, false
		}

		t.push(interval)
		t.state = TrackerTracking
		return interval, true
	}
}

func (t *RRTracker) push(interval float64) {
	if t.size < len(t.intervals) {
		t.intervals[(t.start+t.size)%len(t.intervals)] = interval
		t.size++
		return
	}
	t.intervals[t.start] = interval
	t.start = (t.start + 1) % len(t.intervals)
}

// State returns the tracker's acquisition state
func (t *RRTracker) State() TrackerState {
	return t.state
}

// LastPeakTime returns the timestamp of the latest accepted peak
func (t *RRTracker) LastPeakTime() int64 {
	return t.lastPeakTime
}

// IntervalCount returns the number of valid intervals held
func (t *RRTracker) IntervalCount() int {
	return t.size
}

// Intervals copies the current interval history (oldest first) into dst
// and returns the filled slice.
func (t *RRTracker) Intervals(dst []float64) []float64 {
	dst = dst[:0]
	for i := 0; i < t.size; i++ {
		dst = append(dst, t.intervals[(t.start+i)%len(t.intervals)])
	}
	return dst
}

// SmoothedBPM returns the heart rate from the mean of the most recent
// valid intervals, or 0 when no interval has been accepted yet.
func (t *RRTracker) SmoothedBPM() int {
	if t.size == 0 {
		return 0
	}

	n := t.config.SmoothingWindow
	if n > t.size {
		n = t.size
	}

	sum := 0.0
	for i := t.size - n; i < t.size; i++ {
		sum += t.intervals[(t.start+i)%len(t.intervals)]
	}
	meanInterval := sum / float64(n)
	if meanInterval <= 0 {
		return 0
	}

	return int(math.Round(60000 / meanInterval))
}

// Reset clears all tracker state back to idle
func (t *RRTracker) Reset() {
	t.state = TrackerIdle
	t.lastPeakTime = 0
	t.start = 0
	t.size = 0
}
