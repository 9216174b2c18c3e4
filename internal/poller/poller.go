// Package poller provides sensor reading with hardware abstraction.
// The BLE implementation listens to sensor advertisements.
// The fake implementation allows testing without hardware.
package poller

import (
	"context"
	"errors"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// ErrTimeout is returned when the sensor did not advertise within the read timeout.
var ErrTimeout = errors.New("poller: timed out waiting for sensor")

// Poller reads single quantities from a sensor.
type Poller interface {
	// Read returns the current value of q.
	// A non-nil error is a communication fault: the sensor could not be reached.
	// ok=false with a nil error means the sensor answered without a value for q.
	Read(ctx context.Context, q logic.Quantity) (value float64, ok bool, err error)
}
