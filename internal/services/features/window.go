package features

// Window is a fixed-capacity sliding window over a float series. The oldest
// sample is evicted once the window is full. Not safe for concurrent use.
type Window struct {
	buf   []float64
	start int
	size  int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when full.
func (w *Window) Push(v float64) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

func (w *Window) Len() int { return w.size }

func (w *Window) Cap() int { return len(w.buf) }

func (w *Window) Full() bool { return w.size == len(w.buf) }

// Values returns the samples oldest first. The returned slice is a copy.
func (w *Window) Values() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

// Last returns the newest sample, or 0 when empty.
func (w *Window) Last() float64 {
	if w.size == 0 {
		return 0
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)]
}
