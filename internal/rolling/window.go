package rolling

// ring is a fixed-capacity circular buffer of the most recent values of one
// partition.
type ring struct {
	buf   []float64
	next  int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]float64, capacity)}
}

// push appends v, overwriting the oldest value once full.
func (r *ring) push(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// last copies the n most recent values into dst, oldest first, and returns
// dst[:n]. n must not exceed the number of values pushed.
func (r *ring) last(n int, dst []float64) []float64 {
	dst = dst[:n]
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(start+i)%len(r.buf)]
	}
	return dst
}
