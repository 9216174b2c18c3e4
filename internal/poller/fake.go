package poller

import (
	"context"
	"errors"
	"sync"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// Response is one scripted answer from a FakePoller.
type Response struct {
	Value float64
	OK    bool
	Err   error
}

// Sample returns a Response carrying a valid reading.
func Sample(v float64) Response {
	return Response{Value: v, OK: true}
}

// Missing returns a Response signalling no data.
func Missing() Response {
	return Response{}
}

// Failure returns a Response carrying a communication fault.
func Failure(err error) Response {
	return Response{Err: err}
}

// FakePoller is a test double that returns scripted responses per quantity.
type FakePoller struct {
	mu sync.Mutex
	// Responses contains scripted answers per quantity.
	// Each call to Read consumes the next response.
	Responses map[logic.Quantity][]Response
	// index tracks current position per quantity
	index map[logic.Quantity]int
	// Calls counts Read invocations per quantity.
	Calls map[logic.Quantity]int
}

// NewFakePoller creates a FakePoller with the given scripts.
func NewFakePoller(responses map[logic.Quantity][]Response) *FakePoller {
	if responses == nil {
		responses = make(map[logic.Quantity][]Response)
	}
	return &FakePoller{
		Responses: responses,
		index:     make(map[logic.Quantity]int),
		Calls:     make(map[logic.Quantity]int),
	}
}

// Read returns the next scripted response for q.
// If responses are exhausted, returns the last response repeatedly.
func (f *FakePoller) Read(ctx context.Context, q logic.Quantity) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls[q]++
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	script := f.Responses[q]
	if len(script) == 0 {
		return 0, false, errors.New("no responses configured")
	}
	r := script[f.index[q]]
	if f.index[q] < len(script)-1 {
		f.index[q]++
	}
	return r.Value, r.OK, r.Err
}

// Reset rewinds every script to its first response.
func (f *FakePoller) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = make(map[logic.Quantity]int)
	f.Calls = make(map[logic.Quantity]int)
}
