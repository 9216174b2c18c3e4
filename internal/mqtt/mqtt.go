// Package mqtt publishes sensor entities to MQTT with abstraction for testing.
// Entities are announced with Home Assistant MQTT discovery.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// DefaultDiscoveryPrefix is the Home Assistant discovery prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Topics derives every topic used for one sensor.
type Topics struct {
	Node            string
	Base            string
	DiscoveryPrefix string
}

// NodeID derives a stable node id from a MAC address, e.g. "mitemp_582d3410abcd".
func NodeID(address string) string {
	return "mitemp_" + strings.ToLower(strings.ReplaceAll(address, ":", ""))
}

// NewTopics builds the topic set for the sensor at address.
func NewTopics(address, discoveryPrefix string) Topics {
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	node := NodeID(address)
	return Topics{
		Node:            node,
		Base:            "mitemp/" + node,
		DiscoveryPrefix: discoveryPrefix,
	}
}

// State is the topic carrying the stabilized value of q.
func (t Topics) State(q logic.Quantity) string {
	return fmt.Sprintf("%s/%s/state", t.Base, q)
}

// Discovery is the retained Home Assistant config topic for q.
func (t Topics) Discovery(q logic.Quantity) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", t.DiscoveryPrefix, t.Node, q)
}

// Availability is the topic carrying online/offline, also used for the will.
func (t Topics) Availability() string {
	return t.Base + "/availability"
}

// System is the topic for lifecycle events.
func (t Topics) System() string {
	return t.Base + "/system"
}

// UniqueID is the entity id announced for q.
func (t Topics) UniqueID(q logic.Quantity) string {
	return t.Node + "_" + string(q)
}

// Publisher publishes entities to MQTT.
type Publisher interface {
	// PublishDiscovery announces an entity to the host (retained).
	PublishDiscovery(d Discovery) error
	// PublishState sends the stabilized value of an entity.
	// Returns error if publishing fails (should not crash the process).
	PublishState(s State) error
	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error
	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Discovery describes one entity for Home Assistant.
type Discovery struct {
	Quantity    logic.Quantity
	Name        string
	DeviceName  string
	Unit        string
	DeviceClass string
	ForceUpdate bool
}

// State is the stabilized value of one entity at a point in time.
type State struct {
	Timestamp time.Time
	Quantity  logic.Quantity
	Value     float64
	Known     bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// DiscoveryPayload is the Home Assistant MQTT sensor config.
type DiscoveryPayload struct {
	Name                string        `json:"name"`
	UniqueID            string        `json:"unique_id"`
	StateTopic          string        `json:"state_topic"`
	ValueTemplate       string        `json:"value_template"`
	UnitOfMeasurement   string        `json:"unit_of_measurement,omitempty"`
	DeviceClass         string        `json:"device_class,omitempty"`
	StateClass          string        `json:"state_class"`
	ForceUpdate         bool          `json:"force_update"`
	AvailabilityTopic   string        `json:"availability_topic"`
	PayloadAvailable    string        `json:"payload_available"`
	PayloadNotAvailable string        `json:"payload_not_available"`
	Device              DevicePayload `json:"device"`
}

// DevicePayload groups entities of one physical sensor.
type DevicePayload struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// FormatDiscoveryPayload creates the JSON config for an entity.
func FormatDiscoveryPayload(t Topics, d Discovery) ([]byte, error) {
	payload := DiscoveryPayload{
		Name:                d.Name,
		UniqueID:            t.UniqueID(d.Quantity),
		StateTopic:          t.State(d.Quantity),
		ValueTemplate:       "{{ value_json.value }}",
		UnitOfMeasurement:   d.Unit,
		DeviceClass:         d.DeviceClass,
		StateClass:          "measurement",
		ForceUpdate:         d.ForceUpdate,
		AvailabilityTopic:   t.Availability(),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		Device: DevicePayload{
			Identifiers:  []string{t.Node},
			Name:         d.DeviceName,
			Model:        "CGG1",
			Manufacturer: "Qingping",
		},
	}
	return json.Marshal(payload)
}

// StatePayload represents the MQTT message payload for an entity state.
// Value is null while the stabilized value is unknown.
type StatePayload struct {
	Timestamp string   `json:"timestamp"`
	Quantity  string   `json:"quantity"`
	Value     *float64 `json:"value"`
}

// FormatStatePayload creates the JSON payload for an entity state.
func FormatStatePayload(s State) ([]byte, error) {
	payload := StatePayload{
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		Quantity:  string(s.Quantity),
	}
	if s.Known {
		v := s.Value
		payload.Value = &v
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
