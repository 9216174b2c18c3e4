package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// DefaultAdapter is the BlueZ adapter used when none is configured.
const DefaultAdapter = "hci0"

// Options configures a BLEPoller.
type Options struct {
	// Address is the sensor MAC address, e.g. "58:2D:34:10:AB:CD".
	Address string
	// Adapter is the local adapter id (linux only).
	Adapter string
	// CacheTimeout is how long an advertisement stays valid.
	CacheTimeout time.Duration
	// Timeout bounds how long Read waits for a fresh advertisement.
	Timeout time.Duration
}

// serviceData is one service data element of an advertisement.
type serviceData struct {
	UUID uint16
	Data []byte
}

// BLEPoller serves reads from passively scanned advertisements.
type BLEPoller struct {
	opts   Options
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewBLEPoller creates a poller for the sensor at opts.Address.
// Call Run to start scanning.
func NewBLEPoller(opts Options, logger *slog.Logger) (*BLEPoller, error) {
	if strings.TrimSpace(opts.Address) == "" {
		return nil, errors.New("poller: sensor address is required")
	}
	opts.Address = strings.ToUpper(strings.TrimSpace(opts.Address))
	if opts.Adapter == "" {
		opts.Adapter = DefaultAdapter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BLEPoller{
		opts:   opts,
		cache:  NewCache(opts.CacheTimeout, time.Now),
		logger: logger.With("component", "ble", "addr", opts.Address),
		now:    time.Now,
	}, nil
}

// Read implements Poller.
func (p *BLEPoller) Read(ctx context.Context, q logic.Quantity) (float64, bool, error) {
	return p.cache.Read(ctx, q, p.opts.Timeout)
}

// LastSeen returns when the sensor last advertised.
func (p *BLEPoller) LastSeen() time.Time {
	return p.cache.LastSeen()
}

// handleAdvertisement decodes matching service data from addr into the cache.
// Reports whether a reading was stored.
func (p *BLEPoller) handleAdvertisement(addr string, rssi int16, elems []serviceData) bool {
	if !strings.EqualFold(addr, p.opts.Address) {
		return false
	}

	stored := false
	for _, sd := range elems {
		r, err := DecodeServiceData(sd.UUID, sd.Data)
		if err != nil {
			p.logger.Debug("ble: ignore service data", "uuid", sd.UUID, "error", err)
			continue
		}
		r.SeenAt = p.now()
		p.cache.Store(r)
		stored = true
		p.logger.Debug("ble: advertisement decoded",
			"rssi", rssi,
			"temperature", deref(r.Temperature),
			"humidity", deref(r.Humidity),
			"battery", deref(r.Battery),
		)
	}
	return stored
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
