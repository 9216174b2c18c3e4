// Package logic contains the pure sample-processing core of the sensor bridge.
// This package has NO external dependencies (no BLE, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Quantity identifies a measured property of the sensor.
type Quantity string

const (
	QuantityTemperature Quantity = "temperature"
	QuantityHumidity    Quantity = "humidity"
	QuantityBattery     Quantity = "battery"
)

// QuantityInfo is the static metadata published alongside a quantity.
type QuantityInfo struct {
	DisplayName string
	Unit        string
	DeviceClass string
}

var quantityInfo = map[Quantity]QuantityInfo{
	QuantityTemperature: {DisplayName: "Temperature", Unit: "°C", DeviceClass: "temperature"},
	QuantityHumidity:    {DisplayName: "Humidity", Unit: "%", DeviceClass: "humidity"},
	QuantityBattery:     {DisplayName: "Battery", Unit: "%", DeviceClass: "battery"},
}

// AllQuantities returns every supported quantity in publication order.
func AllQuantities() []Quantity {
	return []Quantity{QuantityTemperature, QuantityHumidity, QuantityBattery}
}

// ParseQuantity converts a configuration string into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	q := Quantity(s)
	if _, ok := quantityInfo[q]; !ok {
		return "", fmt.Errorf("unknown quantity %q (allowed: temperature, humidity, battery)", s)
	}
	return q, nil
}

// Info returns the metadata for q. Unknown quantities get their raw name and no unit.
func (q Quantity) Info() QuantityInfo {
	if info, ok := quantityInfo[q]; ok {
		return info
	}
	return QuantityInfo{DisplayName: string(q)}
}

// OutcomeKind classifies the result of one attempt to read a quantity.
type OutcomeKind string

const (
	// OutcomeValid is a successful numeric reading.
	OutcomeValid OutcomeKind = "VALID"
	// OutcomeNoData means the sensor answered but had no value for the quantity.
	OutcomeNoData OutcomeKind = "NO_DATA"
	// OutcomeFault means the sensor could not be reached at all.
	OutcomeFault OutcomeKind = "FAULT"
)

// Outcome is a tagged result of a single poll.
// Only Value is meaningful for OutcomeValid and only Err for OutcomeFault.
type Outcome struct {
	Kind  OutcomeKind
	Value float64
	Err   error
}

// Valid returns a successful sample outcome.
func Valid(v float64) Outcome {
	return Outcome{Kind: OutcomeValid, Value: v}
}

// NoData returns an outcome for a reachable sensor without a value.
func NoData() Outcome {
	return Outcome{Kind: OutcomeNoData}
}

// Fault returns a communication failure outcome.
func Fault(err error) Outcome {
	return Outcome{Kind: OutcomeFault, Err: err}
}

// OutcomeCounts tracks the number of each outcome kind since startup.
type OutcomeCounts struct {
	Valid  int
	NoData int
	Fault  int
}

// Add counts one outcome of the given kind.
func (c *OutcomeCounts) Add(kind OutcomeKind) {
	switch kind {
	case OutcomeValid:
		c.Valid++
	case OutcomeNoData:
		c.NoData++
	case OutcomeFault:
		c.Fault++
	}
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
