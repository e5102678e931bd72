package signal

// Ring is a fixed-capacity FIFO buffer of conditioned samples. When full,
// pushing a new sample evicts the oldest one. The rest of the pipeline
// reads windows out of the ring but never mutates it in place.
type Ring struct {
	buf   []FilteredSample
	start int
	size  int
}

// NewRing creates a ring buffer with the given fixed capacity
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]FilteredSample, capacity)}
}

// Push appends a sample, evicting the oldest entry when at capacity
func (r *Ring) Push(s FilteredSample) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of samples currently held
func (r *Ring) Len() int {
	return r.size
}

// Cap returns the fixed capacity of the ring
func (r *Ring) Cap() int {
	return len(r.buf)
}

// At returns the i-th oldest sample. i must be in [0, Len())
func (r *Ring) At(i int) FilteredSample {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Last returns the most recent sample and whether one exists
func (r *Ring) Last() (FilteredSample, bool) {
	if r.size == 0 {
		return FilteredSample{}, false
	}
	return r.At(r.size - 1), true
}

// Window copies the most recent n samples (oldest first) into dst and
// returns the filled slice. If fewer than n samples are held, all of
// them are returned. dst is grown only if its capacity is insufficient.
func (r *Ring) Window(n int, dst []FilteredSample) []FilteredSample {
	if n > r.size {
		n = r.size
	}
	dst = dst[:0]
	for i := r.size - n; i < r.size; i++ {
		dst = append(dst, r.At(i))
	}
	return dst
}

// Reset empties the ring without releasing its backing storage
func (r *Ring) Reset() {
	r.start = 0
	r.size = 0
}
