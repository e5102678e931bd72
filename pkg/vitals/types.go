package vitals

import (
	"fmt"
	"strconv"
	"strings"
)

// Arrhythmia status labels exposed to consumers
const (
	StatusCalibrating  = "CALIBRATING"
	StatusNoArrhythmia = "NO ARRHYTHMIA"
	StatusDetected     = "ARRHYTHMIA DETECTED"
)

// ArrhythmiaType classifies the morphology of a detected event
type ArrhythmiaType string

const (
	// TypeIrregular is a generic irregular-rhythm event
	TypeIrregular ArrhythmiaType = "irregular_rhythm"
	// TypePrematureBeat is a short-long-normal interval pattern (PAC/PVC)
	TypePrematureBeat ArrhythmiaType = "premature_beat"
	// TypeAFibPattern is sustained high RMSSD with a high irregularity ratio
	TypeAFibPattern ArrhythmiaType = "afib_pattern"
)

// ArrhythmiaEvent is emitted at most once per cooldown interval when an
// irregular rhythm is detected.
type ArrhythmiaEvent struct {
	Timestamp   int64          `json:"timestamp"`
	RMSSD       float64        `json:"rmssd"`
	RRVariation float64        `json:"rr_variation"`
	Type        ArrhythmiaType `json:"type"`
}

// VitalsSnapshot is the per-sample output contract of the pipeline.
type VitalsSnapshot struct {
	SpO2                float64          `json:"spo2"`
	Systolic            int              `json:"systolic"`
	Diastolic           int              `json:"diastolic"`
	PressureMeasured    bool             `json:"pressure_measured"`
	HeartRate           int              `json:"heart_rate"`
	SignalQuality       float64          `json:"signal_quality"`
	ArrhythmiaStatus    string           `json:"arrhythmia_status"`
	ArrhythmiaCount     int              `json:"arrhythmia_count"`
	LastArrhythmiaEvent *ArrhythmiaEvent `json:"last_arrhythmia_event,omitempty"`
}

// RRBundle is an optional externally supplied RR-interval and peak-time
// bundle, used when the beat tracker lives outside this pipeline
// instance. Amplitudes may be nil, in which case morphological checks
// are skipped.
type RRBundle struct {
	Intervals    []float64 `json:"intervals"`
	LastPeakTime int64     `json:"last_peak_time"` // 0 means absent
	Amplitudes   []float64 `json:"amplitudes,omitempty"`
}

// PressureUnknown is the placeholder for a not-yet-measurable reading,
// distinct from a measured-but-implausible one (which is clamped).
const PressureUnknown = "--/--"

// FormatPressure renders systolic/diastolic as "<sys>/<dia>", or the
// unknown placeholder when no reading is available.
func FormatPressure(systolic, diastolic int, measured bool) string {
	if !measured {
		return PressureUnknown
	}
	return fmt.Sprintf("%d/%d", systolic, diastolic)
}

// ParsePressure parses a pressure string produced by FormatPressure.
// It returns measured=false for the unknown placeholder.
func ParsePressure(s string) (systolic, diastolic int, measured bool, err error) {
	if s == PressureUnknown || s == "0/0" {
		return 0, 0, false, nil
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false, fmt.Errorf("malformed pressure string %q", s)
	}
	systolic, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed systolic in %q: %w", s, err)
	}
	diastolic, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed diastolic in %q: %w", s, err)
	}
	return systolic, diastolic, true, nil
}

// FormatArrhythmiaStatus renders the status as "<LABEL>|<count>".
func FormatArrhythmiaStatus(label string, count int) string {
	return fmt.Sprintf("%s|%d", label, count)
}

// ParseArrhythmiaStatus parses a status string produced by
// FormatArrhythmiaStatus.
func ParseArrhythmiaStatus(s string) (label string, count int, err error) {
	idx := strings.LastIndex(s, "|")
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed arrhythmia status %q", s)
	}
	label = s[:idx]
	count, err = strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed arrhythmia count in %q: %w", s, err)
	}
	return label, count, nil
}

// PressureString renders the snapshot's blood pressure reading
func (v *VitalsSnapshot) PressureString() string {
	return FormatPressure(v.Systolic, v.Diastolic, v.PressureMeasured)
}

// ArrhythmiaStatusString renders the snapshot's arrhythmia status
func (v *VitalsSnapshot) ArrhythmiaStatusString() string {
	return FormatArrhythmiaStatus(v.ArrhythmiaStatus, v.ArrhythmiaCount)
}
