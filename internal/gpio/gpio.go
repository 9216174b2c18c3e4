// Package gpio drives the status indicator LED with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator is a single on/off output.
type Indicator interface {
	// Set drives the output. Repeated calls with the same value are allowed.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Chip is the GPIO character device used for the indicator.
const Chip = "gpiochip0"

// NopIndicator is used when no LED pin is configured.
type NopIndicator struct{}

// Set does nothing.
func (NopIndicator) Set(bool) error { return nil }

// Close does nothing.
func (NopIndicator) Close() error { return nil }

// Open returns the indicator for the given BCM pin. A negative pin disables it.
func Open(pin int) (Indicator, error) {
	if pin < 0 {
		return NopIndicator{}, nil
	}
	return NewRealIndicator(pin)
}
