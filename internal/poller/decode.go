package poller

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

// Service data UUIDs carrying sensor readings.
const (
	// UUIDQingping is used by stock CGG1 firmware.
	UUIDQingping uint16 = 0xFDCD
	// UUIDEnvironmental is used by ATC1441 and pvvx custom firmware.
	UUIDEnvironmental uint16 = 0x181A
)

const (
	qingpingHeaderLen = 8
	qingpingTypeTH    = 0x01
	qingpingTypeBatt  = 0x02

	atcLen  = 13
	pvvxLen = 15
)

var (
	// ErrTooShort is returned for payloads shorter than their format requires.
	ErrTooShort = errors.New("poller: payload too short")
	// ErrUnknownFormat is returned for service data this package cannot decode.
	ErrUnknownFormat = errors.New("poller: unknown payload format")
)

// Reading is one decoded advertisement. Quantities absent from the
// advertisement are nil.
type Reading struct {
	Address     string
	Temperature *float64
	Humidity    *float64
	Battery     *float64
	SeenAt      time.Time
}

// Value returns the reading's value for q.
func (r Reading) Value(q logic.Quantity) (float64, bool) {
	var p *float64
	switch q {
	case logic.QuantityTemperature:
		p = r.Temperature
	case logic.QuantityHumidity:
		p = r.Humidity
	case logic.QuantityBattery:
		p = r.Battery
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// DecodeServiceData decodes service data published under a 16-bit UUID.
func DecodeServiceData(uuid uint16, data []byte) (Reading, error) {
	switch uuid {
	case UUIDQingping:
		return DecodeQingping(data)
	case UUIDEnvironmental:
		switch len(data) {
		case atcLen:
			return DecodeATC(data)
		case pvvxLen:
			return DecodePVVX(data)
		}
		return Reading{}, fmt.Errorf("%w: 0x181A length %d", ErrUnknownFormat, len(data))
	default:
		return Reading{}, fmt.Errorf("%w: uuid 0x%04X", ErrUnknownFormat, uuid)
	}
}

// DecodeQingping decodes a Qingping/ClearGrass advertisement.
// Layout: frame control (1), product id (1), MAC reversed (6), then
// type-length-value records. Type 0x01 holds temperature (int16 LE, 0.1°C)
// and humidity (uint16 LE, 0.1%); type 0x02 holds battery percent.
func DecodeQingping(data []byte) (Reading, error) {
	if len(data) < qingpingHeaderLen {
		return Reading{}, fmt.Errorf("%w: qingping %d bytes", ErrTooShort, len(data))
	}

	r := Reading{Address: reversedMAC(data[2:8])}
	for i := qingpingHeaderLen; i+2 <= len(data); {
		typ := data[i]
		n := int(data[i+1])
		if i+2+n > len(data) {
			return Reading{}, fmt.Errorf("%w: qingping record 0x%02X needs %d bytes", ErrTooShort, typ, n)
		}
		v := data[i+2 : i+2+n]

		switch {
		case typ == qingpingTypeTH && n == 4:
			temp := float64(int16(binary.LittleEndian.Uint16(v[0:2]))) / 10
			hum := float64(binary.LittleEndian.Uint16(v[2:4])) / 10
			r.Temperature = &temp
			r.Humidity = &hum
		case typ == qingpingTypeBatt && n == 1:
			batt := float64(v[0])
			r.Battery = &batt
		}
		i += 2 + n
	}
	return r, nil
}

// DecodeATC decodes the ATC1441 custom firmware format (13 bytes):
// MAC (6, big endian), temperature int16 BE in 0.1°C, humidity %, battery %,
// battery mV uint16 BE, frame counter.
func DecodeATC(data []byte) (Reading, error) {
	if len(data) < atcLen {
		return Reading{}, fmt.Errorf("%w: atc %d bytes", ErrTooShort, len(data))
	}
	temp := float64(int16(binary.BigEndian.Uint16(data[6:8]))) / 10
	hum := float64(data[8])
	batt := float64(data[9])
	return Reading{
		Address:     formatMAC(data[0:6]),
		Temperature: &temp,
		Humidity:    &hum,
		Battery:     &batt,
	}, nil
}

// DecodePVVX decodes the pvvx custom firmware format (15 bytes):
// MAC reversed (6), temperature int16 LE in 0.01°C, humidity uint16 LE in
// 0.01%, battery mV uint16 LE, battery %, counter, flags.
func DecodePVVX(data []byte) (Reading, error) {
	if len(data) < pvvxLen {
		return Reading{}, fmt.Errorf("%w: pvvx %d bytes", ErrTooShort, len(data))
	}
	temp := float64(int16(binary.LittleEndian.Uint16(data[6:8]))) / 100
	hum := float64(binary.LittleEndian.Uint16(data[8:10])) / 100
	batt := float64(data[12])
	return Reading{
		Address:     reversedMAC(data[0:6]),
		Temperature: &temp,
		Humidity:    &hum,
		Battery:     &batt,
	}, nil
}

func formatMAC(b []byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5])
}

func reversedMAC(b []byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[5], b[4], b[3], b[2], b[1], b[0])
}
