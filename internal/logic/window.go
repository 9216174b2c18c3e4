package logic

import "sort"

// window is a fixed-capacity FIFO of samples, oldest first.
// Not safe for concurrent use; caller must synchronize.
type window struct {
	buf      []float64
	capacity int
	head     int // position of the oldest sample
	count    int
}

func newWindow(capacity int) *window {
	return &window{
		buf:      make([]float64, capacity),
		capacity: capacity,
	}
}

// push appends v, overwriting the oldest sample when full.
func (w *window) push(v float64) {
	if w.count == w.capacity {
		w.buf[w.head] = v
		w.head = (w.head + 1) % w.capacity
		return
	}
	w.buf[(w.head+w.count)%w.capacity] = v
	w.count++
}

// popFront drops the oldest sample. Reports false if the window was empty.
func (w *window) popFront() bool {
	if w.count == 0 {
		return false
	}
	w.head = (w.head + 1) % w.capacity
	w.count--
	if w.count == 0 {
		w.head = 0
	}
	return true
}

func (w *window) len() int {
	return w.count
}

// values returns the samples oldest first.
func (w *window) values() []float64 {
	if w.count == 0 {
		return nil
	}
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%w.capacity]
	}
	return out
}

// sorted returns an ascending copy of the samples.
func (w *window) sorted() []float64 {
	out := w.values()
	sort.Float64s(out)
	return out
}
