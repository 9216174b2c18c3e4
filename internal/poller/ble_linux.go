//go:build linux

package poller

import (
	"context"

	"tinygo.org/x/bluetooth"
)

// Run scans on the configured BlueZ adapter until ctx is canceled.
func (p *BLEPoller) Run(ctx context.Context) error {
	return p.scan(ctx, bluetooth.NewAdapter(p.opts.Adapter))
}
