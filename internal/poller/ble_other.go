//go:build !linux && !darwin && !windows

package poller

import (
	"context"
	"errors"
)

// Run is not implemented on platforms without a BLE stack.
func (p *BLEPoller) Run(ctx context.Context) error {
	return errors.New("ble: not supported on this platform")
}
