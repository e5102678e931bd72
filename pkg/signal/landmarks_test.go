package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sineWindow builds a pulse-like waveform: base intensity 100 with a
// 10-unit oscillation and a 20-sample period (one beat per 20 samples).
func sineWindow(n int) []float64 {
	window := make([]float64, n)
	for i := range window {
		window[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/20)
	}
	return window
}

func TestDetectFindsPeaksAndValleys(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())
	window := sineWindow(60)

	peaks, valleys := detector.Detect(window, nil, nil)

	// Maxima at the quarter-period points, minima at the three-quarter
	// points, edges excluded
	assert.Equal(t, []int{5, 25, 45}, peaks)
	assert.Equal(t, []int{15, 35, 55}, valleys)
}

func TestDetectRejectsAlternatingJitter(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())

	// Sample-to-sample jitter: every point ties with its neighbor two
	// steps away, so the strict comparison admits nothing.
	window := make([]float64, 60)
	for i := range window {
		if i%2 == 0 {
			window[i] = 101
		} else {
			window[i] = 99
		}
	}

	peaks, valleys := detector.Detect(window, nil, nil)
	assert.Empty(t, peaks, "Alternating jitter should produce no peaks")
	assert.Empty(t, valleys, "Alternating jitter should produce no valleys")
}

func TestDetectReusesScratchSlices(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())
	window := sineWindow(60)

	peaks := make([]int, 0, 16)
	valleys := make([]int, 0, 16)

	p1, v1 := detector.Detect(window, peaks, valleys)
	p2, v2 := detector.Detect(window, p1, v1)

	assert.Equal(t, p1, p2)
	assert.Equal(t, v1, v2)
}

func TestQualityCleanSignal(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())
	window := sineWindow(60)

	peaks, valleys := detector.Detect(window, nil, nil)
	quality := detector.Quality(window, peaks, valleys)

	// Identical beat amplitudes mean zero variability
	assert.InDelta(t, 100.0, quality, 1e-6)
}

func TestQualityInsufficientLandmarks(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())
	window := sineWindow(60)

	assert.Equal(t, 0.0, detector.Quality(window, []int{5}, []int{15, 35}))
	assert.Equal(t, 0.0, detector.Quality(window, nil, nil))
}

func TestQualityDegradesWithVariability(t *testing.T) {
	detector := NewLandmarkDetector(DefaultDetectorConfig())

	// Amplitude-modulated beats: each pulse has a different height
	window := make([]float64, 60)
	for i := range window {
		amp := 10 + 6*math.Sin(2*math.Pi*float64(i)/60)
		window[i] = 100 + amp*math.Sin(2*math.Pi*float64(i)/20)
	}

	peaks, valleys := detector.Detect(window, nil, nil)
	quality := detector.Quality(window, peaks, valleys)

	assert.Greater(t, quality, 0.0)
	assert.Less(t, quality, 100.0, "Uneven amplitudes should lower the score")
}
