// Package risk classifies rolling averages of measured vitals into
// clinically named risk bands with stability gating, so that one noisy
// instant cannot flip the displayed risk label.
package risk

import (
	"ppgmon-server/pkg/vitals"
)

// Severity orders the risk bands
type Severity int

const (
	// SeverityNormal is the in-range band
	SeverityNormal Severity = iota
	// SeverityMild is a borderline band worth watching
	SeverityMild
	// SeveritySevere is a clinically alarming band
	SeveritySevere
	// SeverityUnknown means not enough data to classify
	SeverityUnknown
)

// Segment is the classification tag exposed to consumers
type Segment struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// SegmentFor renders a severity as its display segment
func SegmentFor(s Severity) Segment {
	switch s {
	case SeverityNormal:
		return Segment{Color: "green", Label: "Normal"}
	case SeverityMild:
		return Segment{Color: "amber", Label: "Mild Risk"}
	case SeveritySevere:
		return Segment{Color: "red", Label: "Severe Risk"}
	default:
		return Segment{Color: "gray", Label: "Measuring"}
	}
}

// band maps a half-open value range [Lo, Hi) to a severity
type band struct {
	lo, hi   float64
	severity Severity
}

var heartRateBands = []band{
	{0, 40, SeveritySevere},
	{40, 50, SeverityMild},
	{50, 110, SeverityNormal},
	{110, 140, SeverityMild},
	{140, 400, SeveritySevere},
}

var spo2Bands = []band{
	{0, 90, SeveritySevere},
	{90, 95, SeverityMild},
	{95, 101, SeverityNormal},
}

var systolicBands = []band{
	{0, 90, SeveritySevere},
	{90, 100, SeverityMild},
	{100, 140, SeverityNormal},
	{140, 180, SeverityMild},
	{180, 400, SeveritySevere},
}

var diastolicBands = []band{
	{0, 60, SeveritySevere},
	{60, 65, SeverityMild},
	{65, 90, SeverityNormal},
	{90, 120, SeverityMild},
	{120, 300, SeveritySevere},
}

func classify(bands []band, value float64) Severity {
	for _, b := range bands {
		if value >= b.lo && value < b.hi {
			return b.severity
		}
	}
	return SeverityUnknown
}

// Config holds configuration for the temporal risk aggregator
type Config struct {
	MeasurementWindowMs int64   // Full retained history
	StabilityWindowMs   int64   // Short window used for the stability gate
	FinalWindowMs       int64   // Trailing sub-window averaged on a final read
	StabilityMinSamples int     // Samples required inside the stability window
	StabilityQuorum     float64 // Share of those samples that must be in band
	HistoryCapacity     int     // Hard FIFO cap per vital
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{
		MeasurementWindowMs: 40000,
		StabilityWindowMs:   5000,
		FinalWindowMs:       20000,
		StabilityMinSamples: 3,
		StabilityQuorum:     0.75,
		HistoryCapacity:     512,
	}
}

type timedValue struct {
	ts    int64
	value float64
}

type vitalHistory struct {
	samples   []timedValue
	committed Severity
	bands     []band
}

func newVitalHistory(bands []band, capacity int) *vitalHistory {
	return &vitalHistory{
		samples:   make([]timedValue, 0, capacity),
		committed: SeverityUnknown,
		bands:     bands,
	}
}

// Aggregator maintains per-vital timestamped histories and classifies
// them into risk bands. It is an explicitly owned, constructible state
// object: independent monitoring sessions each hold their own
// Aggregator and never interfere.
type Aggregator struct {
	config Config

	heartRate *vitalHistory
	spo2      *vitalHistory
	systolic  *vitalHistory
	diastolic *vitalHistory
}

// NewAggregator creates an aggregator with empty histories
func NewAggregator(config Config) *Aggregator {
	if config.HistoryCapacity < 1 {
		config.HistoryCapacity = 1
	}
	return &Aggregator{
		config:    config,
		heartRate: newVitalHistory(heartRateBands, config.HistoryCapacity),
		spo2:      newVitalHistory(spo2Bands, config.HistoryCapacity),
		systolic:  newVitalHistory(systolicBands, config.HistoryCapacity),
		diastolic: newVitalHistory(diastolicBands, config.HistoryCapacity),
	}
}

// Add records the measured vitals from one snapshot. Unmeasured values
// (zero heart rate or SpO2, unmeasured pressure) are skipped so gaps
// are never mistaken for readings.
func (a *Aggregator) Add(now int64, snapshot vitals.VitalsSnapshot) {
	if snapshot.HeartRate > 0 {
		a.push(a.heartRate, now, float64(snapshot.HeartRate))
	}
	if snapshot.SpO2 > 0 {
		a.push(a.spo2, now, snapshot.SpO2)
	}
	if snapshot.PressureMeasured {
		a.push(a.systolic, now, float64(snapshot.Systolic))
		a.push(a.diastolic, now, float64(snapshot.Diastolic))
	}
}

func (a *Aggregator) push(h *vitalHistory, now int64, value float64) {
	h.samples = append(h.samples, timedValue{ts: now, value: value})
	a.prune(h, now)
	a.updateCommitted(h, now)
}

// prune drops entries outside the measurement window and enforces the
// hard FIFO capacity.
func (a *Aggregator) prune(h *vitalHistory, now int64) {
	cutoff := now - a.config.MeasurementWindowMs
	idx := 0
	for idx < len(h.samples) && h.samples[idx].ts < cutoff {
		idx++
	}
	if idx > 0 {
		h.samples = h.samples[:copy(h.samples, h.samples[idx:])]
	}
	if over := len(h.samples) - a.config.HistoryCapacity; over > 0 {
		h.samples = h.samples[:copy(h.samples, h.samples[over:])]
	}
}

// updateCommitted moves the committed severity only when the candidate
// band is stable across the stability window. This hysteresis prevents
// risk-label flicker on noisy instants.
func (a *Aggregator) updateCommitted(h *vitalHistory, now int64) {
	cutoff := now - a.config.StabilityWindowMs

	count := 0
	sum := 0.0
	for i := len(h.samples) - 1; i >= 0 && h.samples[i].ts >= cutoff; i-- {
		count++
		sum += h.samples[i].value
	}
	if count < a.config.StabilityMinSamples {
		return
	}

	avg := sum / float64(count)
	candidate := classify(h.bands, avg)
	lo, hi, ok := a.bandRange(h.bands, avg)
	if !ok {
		return
	}

	if a.isStable(h, now, lo, hi) {
		h.committed = candidate
	}
}

// bandRange returns the value range of the band containing the recent
// average. Matching on the value rather than the candidate severity
// matters: severities appear in more than one band (tachycardia and
// bradycardia are both severe), and the stability check must count
// samples against the band the average actually falls in.
func (a *Aggregator) bandRange(bands []band, value float64) (float64, float64, bool) {
	for _, b := range bands {
		if value >= b.lo && value < b.hi {
			return b.lo, b.hi, true
		}
	}
	return 0, 0, false
}

// isStable reports whether the history holds enough recent samples and
// a sufficient share of them inside [lo, hi].
func (a *Aggregator) isStable(h *vitalHistory, now int64, lo, hi float64) bool {
	cutoff := now - a.config.StabilityWindowMs
	count := 0
	inBand := 0
	for i := len(h.samples) - 1; i >= 0 && h.samples[i].ts >= cutoff; i-- {
		count++
		if h.samples[i].value >= lo && h.samples[i].value < hi {
			inBand++
		}
	}
	if count < a.config.StabilityMinSamples {
		return false
	}
	return float64(inBand)/float64(count) >= a.config.StabilityQuorum
}

// Report is the current risk classification across all vitals
type Report struct {
	HeartRate Segment `json:"heart_rate"`
	SpO2      Segment `json:"spo2"`
	Systolic  Segment `json:"systolic"`
	Diastolic Segment `json:"diastolic"`
}

// Current returns the stability-gated risk segments
func (a *Aggregator) Current() Report {
	return Report{
		HeartRate: SegmentFor(a.heartRate.committed),
		SpO2:      SegmentFor(a.spo2.committed),
		Systolic:  SegmentFor(a.systolic.committed),
		Diastolic: SegmentFor(a.diastolic.committed),
	}
}

// Final averages each vital over the trailing final sub-window and
// reclassifies once. When a vital has no samples there, it falls back
// to the most frequently observed band across the retained history.
func (a *Aggregator) Final(now int64) Report {
	return Report{
		HeartRate: SegmentFor(a.finalSeverity(a.heartRate, now)),
		SpO2:      SegmentFor(a.finalSeverity(a.spo2, now)),
		Systolic:  SegmentFor(a.finalSeverity(a.systolic, now)),
		Diastolic: SegmentFor(a.finalSeverity(a.diastolic, now)),
	}
}

func (a *Aggregator) finalSeverity(h *vitalHistory, now int64) Severity {
	cutoff := now - a.config.FinalWindowMs
	count := 0
	sum := 0.0
	for i := len(h.samples) - 1; i >= 0 && h.samples[i].ts >= cutoff; i-- {
		count++
		sum += h.samples[i].value
	}
	if count > 0 {
		return classify(h.bands, sum/float64(count))
	}

	// Average unavailable: fall back to the most observed band
	if len(h.samples) == 0 {
		return SeverityUnknown
	}
	var counts [3]int
	for _, s := range h.samples {
		sev := classify(h.bands, s.value)
		if sev >= SeverityNormal && sev <= SeveritySevere {
			counts[sev]++
		}
	}
	best := SeverityNormal
	for sev := SeverityMild; sev <= SeveritySevere; sev++ {
		if counts[sev] > counts[best] {
			best = sev
		}
	}
	return best
}

// Reset clears all histories and committed classifications
func (a *Aggregator) Reset() {
	for _, h := range []*vitalHistory{a.heartRate, a.spo2, a.systolic, a.diastolic} {
		h.samples = h.samples[:0]
		h.committed = SeverityUnknown
	}
}
