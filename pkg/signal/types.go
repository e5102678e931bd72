package signal

// Sample is a single raw intensity reading from the optical sensor.
// Timestamp is wall-clock milliseconds.
type Sample struct {
	Timestamp int64   // Milliseconds since epoch
	Raw       float64 // Raw light intensity from the sensor
}

// FilteredSample is a conditioned reading derived from recent raw samples.
type FilteredSample struct {
	Timestamp int64
	Value     float64
}

// LandmarkKind identifies the type of a detected waveform landmark.
type LandmarkKind int

const (
	// Peak is a systolic maximum in the pulse waveform
	Peak LandmarkKind = iota
	// Valley is a diastolic minimum in the pulse waveform
	Valley
)

// Landmark is a peak or valley found within a given analysis window.
// Index is relative to the window it was detected in; landmarks are
// recomputed on demand and never persisted across windows.
type Landmark struct {
	Index     int
	Kind      LandmarkKind
	Amplitude float64
}
