//go:build linux || darwin || windows

package poller

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// scan enables the adapter and feeds advertisements into the cache until ctx
// is canceled. adapter.Scan blocks until StopScan() or error.
func (p *BLEPoller) scan(ctx context.Context, adapter *bluetooth.Adapter) error {
	p.logger.Info("ble: enabling adapter", "adapter", p.opts.Adapter)
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", p.opts.Adapter, err)
	}

	go func() {
		<-ctx.Done()
		_ = adapter.StopScan()
	}()

	p.logger.Info("ble: scanning started",
		"cache_timeout", p.opts.CacheTimeout,
		"timeout", p.opts.Timeout,
	)

	err := adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		p.handleAdvertisement(r.Address.String(), r.RSSI, toServiceData(r.ServiceData()))
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		p.logger.Info("ble: scanning stopped (context canceled)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	p.logger.Info("ble: scanning stopped")
	return nil
}

func toServiceData(elems []bluetooth.ServiceDataElement) []serviceData {
	var out []serviceData
	for _, e := range elems {
		if !e.UUID.Is16Bit() {
			continue
		}
		out = append(out, serviceData{
			UUID: e.UUID.Get16Bit(),
			Data: append([]byte(nil), e.Data...),
		})
	}
	return out
}
