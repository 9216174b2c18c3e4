package status

import (
	"encoding/json"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/sweeney/mitemp-sensor/internal/logic"
	"github.com/sweeney/mitemp-sensor/internal/sensor"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	LastSeen      string       `json:"last_seen,omitempty"`
	Cycles        int          `json:"cycles"`
	Sensors       []SensorJSON `json:"sensors"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON is the JSON representation of one entity.
type SensorJSON struct {
	Name        string      `json:"name"`
	Quantity    string      `json:"quantity"`
	Unit        string      `json:"unit,omitempty"`
	Value       *float64    `json:"value"`
	Known       bool        `json:"known"`
	FilterState string      `json:"filter_state"`
	WindowSize  int         `json:"window_size"`
	Samples     []float64   `json:"samples"`
	Window      *WindowJSON `json:"window_stats,omitempty"`
	Counts      CountsJSON  `json:"outcome_counts"`
	LastOutcome string      `json:"last_outcome,omitempty"`
	LastUpdate  string      `json:"last_update,omitempty"`
}

// WindowJSON summarizes the raw samples currently in a window.
type WindowJSON struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of outcome counts.
type CountsJSON struct {
	Valid  int `json:"valid"`
	NoData int `json:"no_data"`
	Fault  int `json:"fault"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Address          string `json:"mac"`
	Name             string `json:"name"`
	Adapter          string `json:"adapter"`
	Median           int    `json:"median"`
	ForceUpdate      bool   `json:"force_update"`
	UpdateIntervalMs int64  `json:"update_interval_ms"`
	TimeoutMs        int64  `json:"timeout_ms"`
	CacheValueMs     int64  `json:"cache_value_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	DiscoveryPrefix  string `json:"discovery_prefix"`
	HTTPPort         string `json:"http_port"`
}

// WindowStats summarizes samples. Returns nil for an empty window.
func WindowStats(samples []float64) *WindowJSON {
	if len(samples) == 0 {
		return nil
	}
	data := stats.Float64Data(samples)
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	sd, _ := data.StandardDeviation()
	return &WindowJSON{Min: lo, Max: hi, Mean: mean, StdDev: sd}
}

func buildSensor(e sensor.Snapshot) SensorJSON {
	s := SensorJSON{
		Name:        e.Name,
		Quantity:    string(e.Quantity),
		Unit:        e.Unit,
		Known:       e.Known,
		FilterState: string(e.FilterState),
		WindowSize:  e.WindowSize,
		Samples:     e.Samples,
		Window:      WindowStats(e.Samples),
		Counts: CountsJSON{
			Valid:  e.Counts.Valid,
			NoData: e.Counts.NoData,
			Fault:  e.Counts.Fault,
		},
		LastOutcome: string(e.LastOutcome),
	}
	if s.Samples == nil {
		s.Samples = []float64{}
	}
	if e.Known {
		v := e.Value
		s.Value = &v
	}
	if !e.LastUpdate.IsZero() {
		s.LastUpdate = e.LastUpdate.UTC().Format(time.RFC3339)
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	sensors := make([]SensorJSON, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		sensors = append(sensors, buildSensor(e))
	}

	inner := StatusInner{
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Cycles:        snap.Cycles,
		Sensors:       sensors,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Address:          snap.Config.Address,
			Name:             snap.Config.Name,
			Adapter:          snap.Config.Adapter,
			Median:           snap.Config.Median,
			ForceUpdate:      snap.Config.ForceUpdate,
			UpdateIntervalMs: snap.Config.UpdateIntervalMs,
			TimeoutMs:        snap.Config.TimeoutMs,
			CacheValueMs:     snap.Config.CacheValueMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			DiscoveryPrefix:  snap.Config.DiscoveryPrefix,
			HTTPPort:         snap.Config.HTTPPort,
		},
	}
	if !snap.LastSeen.IsZero() {
		inner.LastSeen = snap.LastSeen.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatSensors returns the JSON array of every entity.
func FormatSensors(snap Snapshot) []byte {
	sensors := make([]SensorJSON, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		sensors = append(sensors, buildSensor(e))
	}
	data, _ := json.MarshalIndent(sensors, "", "  ")
	return data
}

// FormatSensor returns the JSON view of the entity for q.
// Reports false when no entity monitors q.
func FormatSensor(snap Snapshot, q logic.Quantity) ([]byte, bool) {
	for _, e := range snap.Entities {
		if e.Quantity == q {
			data, _ := json.MarshalIndent(buildSensor(e), "", "  ")
			return data, true
		}
	}
	return nil, false
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
