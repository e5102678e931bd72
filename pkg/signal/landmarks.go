package signal

import "math"

// DetectorConfig holds configuration for the waveform landmark detector
type DetectorConfig struct {
	EdgeMargin int // Samples excluded at each window edge (neighbor span k)
}

// DefaultDetectorConfig returns the default landmark detector configuration
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		EdgeMargin: 3,
	}
}

// LandmarkDetector finds systolic peaks and diastolic valleys in a window
// of conditioned samples. An index is classified as a peak only if its
// value strictly exceeds all 2k neighbors on both sides (symmetric rule
// for valleys). The wide-neighbor comparison rejects single-sample noise
// spikes at the cost of missing very closely spaced beats; minimum
// inter-peak spacing is enforced by the beat tracker above this layer.
type LandmarkDetector struct {
	config DetectorConfig
}

// NewLandmarkDetector creates a landmark detector
func NewLandmarkDetector(config DetectorConfig) *LandmarkDetector {
	if config.EdgeMargin < 2 {
		config.EdgeMargin = 2
	}
	return &LandmarkDetector{config: config}
}

// Detect returns peak and valley indices within the window, oldest first.
// The provided slices are reused as scratch space and returned; pass nil
// on first use.
func (d *LandmarkDetector) Detect(window []float64, peaks, valleys []int) ([]int, []int) {
	peaks = peaks[:0]
	valleys = valleys[:0]

	k := d.config.EdgeMargin
	for i := k; i < len(window)-k; i++ {
		isPeak := true
		isValley := true
		for j := 1; j <= k; j++ {
			if window[i] <= window[i-j] || window[i] <= window[i+j] {
				isPeak = false
			}
			if window[i] >= window[i-j] || window[i] >= window[i+j] {
				isValley = false
			}
			if !isPeak && !isValley {
				break
			}
		}
		if isPeak {
			peaks = append(peaks, i)
		} else if isValley {
			valleys = append(valleys, i)
		}
	}

	return peaks, valleys
}

// Quality estimates signal quality in [0,100] from the peak-to-valley
// amplitudes in the window. High amplitude variability relative to the
// average amplitude lowers the score.
func (d *LandmarkDetector) Quality(window []float64, peaks, valleys []int) float64 {
	if len(peaks) < 2 || len(valleys) < 2 {
		return 0
	}

	pairs := len(peaks)
	if len(valleys) < pairs {
		pairs = len(valleys)
	}

	amplitudes := make([]float64, 0, pairs)
	for i := 0; i < pairs; i++ {
		amp := window[peaks[i]] - window[valleys[i]]
		if amp < 0 {
			amp = -amp
		}
		amplitudes = append(amplitudes, amp)
	}

	avg := mean(amplitudes)
	if avg <= 0 {
		return 0
	}
	variability := stddev(amplitudes, avg)

	quality := 100 * (1 - variability/avg)
	if quality < 0 {
		return 0
	}
	if quality > 100 {
		return 100
	}
	return quality
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
