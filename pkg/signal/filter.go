package signal

// FilterConfig holds configuration for the input conditioning filter
type FilterConfig struct {
	SMAWindow           int     // Moving average window in samples
	EnableKalman        bool    // Whether to apply the recursive Bayesian stage
	ProcessVariance     float64 // Kalman process noise variance (Q)
	MeasurementVariance float64 // Kalman measurement noise variance (R)
}

// DefaultFilterConfig returns the default conditioning filter configuration
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		SMAWindow:           3,
		EnableKalman:        true,
		ProcessVariance:     0.1,
		MeasurementVariance: 0.01,
	}
}

// ConditioningFilter denoises the raw per-sample intensity value. It
// composes a short simple moving average to suppress sensor shot noise
// with an optional scalar Kalman filter for a smooth, low-lag estimate.
//
// The filter is single-writer and does not allocate per call in steady
// state; all buffers are sized at construction.
type ConditioningFilter struct {
	config FilterConfig

	// Moving average state
	window []float64
	index  int
	count  int
	sum    float64

	// Kalman state: scalar estimate and its error covariance
	estimate    float64
	errCov      float64
	initialized bool
}

// NewConditioningFilter creates a conditioning filter with the given configuration
func NewConditioningFilter(config FilterConfig) *ConditioningFilter {
	if config.SMAWindow < 1 {
		config.SMAWindow = 1
	}
	return &ConditioningFilter{
		config: config,
		window: make([]float64, config.SMAWindow),
		errCov: 1.0,
	}
}

// Filter processes one raw sample and always returns a conditioned value.
func (f *ConditioningFilter) Filter(raw float64) float64 {
	// Stage 1: simple moving average over the last SMAWindow samples
	if f.count == len(f.window) {
		f.sum -= f.window[f.index]
	} else {
		f.count++
	}
	f.window[f.index] = raw
	f.sum += raw
	f.index = (f.index + 1) % len(f.window)

	smoothed := f.sum / float64(f.count)

	if !f.config.EnableKalman {
		return smoothed
	}

	// Stage 2: scalar Kalman update against the smoothed measurement
	if !f.initialized {
		f.estimate = smoothed
		f.initialized = true
		return f.estimate
	}

	// Predict: random walk model, uncertainty grows by Q
	f.errCov += f.config.ProcessVariance

	// Update
	gain := f.errCov / (f.errCov + f.config.MeasurementVariance)
	f.estimate += gain * (smoothed - f.estimate)
	f.errCov *= 1 - gain

	return f.estimate
}

// Reset restores the filter to its initial state
func (f *ConditioningFilter) Reset() {
	for i := range f.window {
		f.window[i] = 0
	}
	f.index = 0
	f.count = 0
	f.sum = 0
	f.estimate = 0
	f.errCov = 1.0
	f.initialized = false
}
