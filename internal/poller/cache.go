package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

type cachedValue struct {
	value float64
	at    time.Time
}

// Cache holds the most recent advertisement data of one sensor.
// Safe for concurrent use: the scanner stores while the scheduler reads.
type Cache struct {
	mu       sync.Mutex
	maxAge   time.Duration
	now      func() time.Time
	lastSeen time.Time
	values   map[logic.Quantity]cachedValue
	updated  chan struct{} // closed and replaced on every Store
}

// NewCache creates a cache whose entries are fresh for maxAge.
func NewCache(maxAge time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		maxAge:  maxAge,
		now:     now,
		values:  make(map[logic.Quantity]cachedValue),
		updated: make(chan struct{}),
	}
}

// Store records a decoded reading and wakes any waiting readers.
func (c *Cache) Store(r Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := r.SeenAt
	if at.IsZero() {
		at = c.now()
	}
	c.lastSeen = at
	for _, q := range logic.AllQuantities() {
		if v, ok := r.Value(q); ok {
			c.values[q] = cachedValue{value: v, at: at}
		}
	}
	close(c.updated)
	c.updated = make(chan struct{})
}

// LastSeen returns when the sensor last advertised. Zero if never.
func (c *Cache) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// lookup reports q's value if the sensor is fresh; otherwise it returns the
// channel that will be closed by the next Store.
func (c *Cache) lookup(q logic.Quantity) (value float64, ok bool, fresh bool, wait <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.lastSeen.IsZero() || now.Sub(c.lastSeen) > c.maxAge {
		return 0, false, false, c.updated
	}
	cv, has := c.values[q]
	if !has || now.Sub(cv.at) > c.maxAge {
		return 0, false, true, nil
	}
	return cv.value, true, true, nil
}

// Read returns q from the cache, waiting up to timeout for a fresh
// advertisement when the cached data has expired. A sensor that advertised
// recently but without q yields ok=false. A sensor that stays silent yields
// ErrTimeout.
func (c *Cache) Read(ctx context.Context, q logic.Quantity, timeout time.Duration) (float64, bool, error) {
	v, ok, fresh, wait := c.lookup(q)
	if fresh {
		return v, ok, nil
	}
	if timeout <= 0 {
		return 0, false, fmt.Errorf("%w: no advertisement within %v", ErrTimeout, c.maxAge)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-wait:
		case <-timer.C:
			return 0, false, fmt.Errorf("%w after %v", ErrTimeout, timeout)
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}

		v, ok, fresh, wait = c.lookup(q)
		if fresh {
			return v, ok, nil
		}
	}
}
