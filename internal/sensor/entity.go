// Package sensor runs the poll-and-observe cycle for one measured quantity.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
	"github.com/sweeney/mitemp-sensor/internal/poller"
)

// Result describes one completed update cycle.
type Result struct {
	Outcome logic.OutcomeKind
	Value   float64
	Known   bool
	// Changed is true when the stabilized value or its known-ness changed.
	Changed bool
}

// Snapshot is a point-in-time view of an entity, safe to share.
type Snapshot struct {
	Quantity    logic.Quantity
	Name        string
	Unit        string
	DeviceClass string
	ForceUpdate bool
	Value       float64
	Known       bool
	Samples     []float64
	WindowSize  int
	FilterState logic.FilterState
	Counts      logic.OutcomeCounts
	LastOutcome logic.OutcomeKind
	LastUpdate  time.Time
}

// Entity is one published sensor value backed by its own median filter.
// Not safe for concurrent use; the scheduler must not overlap Update calls.
type Entity struct {
	quantity    logic.Quantity
	name        string
	forceUpdate bool
	filter      *logic.MedianFilter
	logger      *slog.Logger
	now         func() time.Time

	counts      logic.OutcomeCounts
	lastOutcome logic.OutcomeKind
	lastUpdate  time.Time
}

// New creates an entity for q. The display name is prefixed with prefix when set.
func New(q logic.Quantity, prefix string, windowSize int, forceUpdate bool, logger *slog.Logger) (*Entity, error) {
	filter, err := logic.NewMedianFilter(windowSize)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: %w", q, err)
	}
	name := q.Info().DisplayName
	if prefix != "" {
		name = prefix + " " + name
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Entity{
		quantity:    q,
		name:        name,
		forceUpdate: forceUpdate,
		filter:      filter,
		logger:      logger.With("component", "sensor", "sensor", name),
		now:         time.Now,
	}, nil
}

// Quantity returns the measured quantity.
func (e *Entity) Quantity() logic.Quantity { return e.quantity }

// Name returns the display name.
func (e *Entity) Name() string { return e.name }

// ForceUpdate reports whether every update is published even if unchanged.
func (e *Entity) ForceUpdate() bool { return e.forceUpdate }

// Value returns the stabilized value; false means unknown.
func (e *Entity) Value() (float64, bool) { return e.filter.Value() }

// Update polls p once and feeds the result into the filter.
// Communication faults are logged and leave the filter untouched.
func (e *Entity) Update(ctx context.Context, p poller.Poller) Result {
	prev, prevKnown := e.filter.Value()

	e.logger.Debug("polling data")
	outcome := classify(p.Read(ctx, e.quantity))

	switch outcome.Kind {
	case logic.OutcomeFault:
		e.logger.Warn("polling error", "error", outcome.Err)
	case logic.OutcomeNoData:
		e.logger.Warn("did not receive any data from sensor")
	case logic.OutcomeValid:
		e.logger.Debug("sample received", "value", outcome.Value)
	}

	v, known := e.filter.Apply(outcome)
	if outcome.Kind == logic.OutcomeValid {
		if e.filter.State() == logic.StateFull {
			e.logger.Debug("median is", "value", v)
		} else {
			e.logger.Debug("not yet enough data for median calculation",
				"samples", e.filter.Len(), "window", e.filter.Size())
		}
	}

	e.counts.Add(outcome.Kind)
	e.lastOutcome = outcome.Kind
	e.lastUpdate = e.now()

	return Result{
		Outcome: outcome.Kind,
		Value:   v,
		Known:   known,
		Changed: known != prevKnown || (known && v != prev),
	}
}

// ShouldPublish reports whether r must be pushed to the host.
func (e *Entity) ShouldPublish(r Result) bool {
	return r.Changed || e.forceUpdate
}

// Snapshot returns a copy of the entity state.
func (e *Entity) Snapshot() Snapshot {
	v, known := e.filter.Value()
	info := e.quantity.Info()
	return Snapshot{
		Quantity:    e.quantity,
		Name:        e.name,
		Unit:        info.Unit,
		DeviceClass: info.DeviceClass,
		ForceUpdate: e.forceUpdate,
		Value:       v,
		Known:       known,
		Samples:     e.filter.Samples(),
		WindowSize:  e.filter.Size(),
		FilterState: e.filter.State(),
		Counts:      e.counts,
		LastOutcome: e.lastOutcome,
		LastUpdate:  e.lastUpdate,
	}
}

func classify(v float64, ok bool, err error) logic.Outcome {
	switch {
	case err != nil:
		return logic.Fault(err)
	case !ok:
		return logic.NoData()
	default:
		return logic.Valid(v)
	}
}
