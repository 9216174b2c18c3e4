//go:build darwin || windows

package poller

import (
	"context"

	"tinygo.org/x/bluetooth"
)

// Run scans on the system default adapter until ctx is canceled.
// Adapter selection is only supported on linux.
func (p *BLEPoller) Run(ctx context.Context) error {
	if p.opts.Adapter != DefaultAdapter {
		p.logger.Warn("ble: adapter selection not supported on this platform, using default", "adapter", p.opts.Adapter)
	}
	return p.scan(ctx, bluetooth.DefaultAdapter)
}
