package logic

import "errors"

// ErrInvalidWindowSize is returned when a filter is built with a size below 1.
var ErrInvalidWindowSize = errors.New("median window size must be at least 1")

// FilterState describes how full a filter's window is.
type FilterState string

const (
	StateEmpty   FilterState = "EMPTY"
	StateFilling FilterState = "FILLING"
	StateFull    FilterState = "FULL"
)

// MedianFilter stabilizes a noisy stream of samples with a rolling median.
// A window of 3 suppresses single outliers, 5 suppresses two; 1 passes samples through.
//
// The stabilized value is first set once the window fills. Missing samples
// shrink the window from the front without recomputing, so a single gap
// never blanks the output; only a gap on an already empty window does.
type MedianFilter struct {
	size   int
	window *window
	value  float64
	known  bool
}

// NewMedianFilter creates a filter over the most recent size samples.
// Even sizes are accepted and use the lower of the two middle samples.
func NewMedianFilter(size int) (*MedianFilter, error) {
	if size < 1 {
		return nil, ErrInvalidWindowSize
	}
	return &MedianFilter{
		size:   size,
		window: newWindow(size),
	}, nil
}

// Observe feeds one poll result into the filter and returns the stabilized value.
// ok=false signals that the sensor answered without data for this quantity.
func (f *MedianFilter) Observe(sample float64, ok bool) (float64, bool) {
	if !ok {
		if !f.window.popFront() {
			f.value = 0
			f.known = false
		}
		return f.Value()
	}

	f.window.push(sample)
	if f.window.len() == f.size {
		f.value = f.window.sorted()[(f.size-1)/2]
		f.known = true
	}
	return f.Value()
}

// Apply feeds an outcome into the filter. Faults leave the filter untouched.
func (f *MedianFilter) Apply(o Outcome) (float64, bool) {
	switch o.Kind {
	case OutcomeValid:
		return f.Observe(o.Value, true)
	case OutcomeNoData:
		return f.Observe(0, false)
	default:
		return f.Value()
	}
}

// Value returns the stabilized value; false means unknown.
func (f *MedianFilter) Value() (float64, bool) {
	return f.value, f.known
}

// Len returns the number of samples currently held.
func (f *MedianFilter) Len() int {
	return f.window.len()
}

// Size returns the configured window size.
func (f *MedianFilter) Size() int {
	return f.size
}

// Samples returns a copy of the window, oldest first.
func (f *MedianFilter) Samples() []float64 {
	return f.window.values()
}

// State reports the window fill level.
func (f *MedianFilter) State() FilterState {
	switch n := f.window.len(); {
	case n == 0:
		return StateEmpty
	case n < f.size:
		return StateFilling
	default:
		return StateFull
	}
}
