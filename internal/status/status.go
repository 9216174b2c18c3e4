// Package status provides a thread-safe status tracker for the mitemp-sensor daemon.
// It is read by HTTP handlers and the indicator LED.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/sensor"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Address          string
	Name             string
	Adapter          string
	Median           int
	ForceUpdate      bool
	UpdateIntervalMs int64
	TimeoutMs        int64
	CacheValueMs     int64
	HeartbeatMs      int64
	Broker           string
	DiscoveryPrefix  string
	HTTPPort         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Entities      []sensor.Snapshot
	LastSeen      time.Time
	Cycles        int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every entity has a known stabilized value.
// A daemon without entities is never ready.
func (s Snapshot) Ready() bool {
	if len(s.Entities) == 0 {
		return false
	}
	for _, e := range s.Entities {
		if !e.Known {
			return false
		}
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the entity snapshots and the sensor's last advertisement time.
// Called from runLoop after every update cycle.
func (t *Tracker) Update(entities []sensor.Snapshot, lastSeen time.Time) {
	cp := make([]sensor.Snapshot, len(entities))
	copy(cp, entities)

	t.mu.Lock()
	t.snap.Entities = cp
	t.snap.LastSeen = lastSeen
	t.snap.Cycles++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Entities = make([]sensor.Snapshot, len(t.snap.Entities))
	copy(s.Entities, t.snap.Entities)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
