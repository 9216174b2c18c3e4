package internal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/mitemp-sensor/internal/logic"
	"github.com/sweeney/mitemp-sensor/internal/mqtt"
	"github.com/sweeney/mitemp-sensor/internal/poller"
	"github.com/sweeney/mitemp-sensor/internal/sensor"
	"github.com/sweeney/mitemp-sensor/internal/status"
)

const address = "58:2D:34:10:AB:CD"

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// cachePoller serves reads straight from a cache without waiting.
type cachePoller struct {
	cache *poller.Cache
}

func (p cachePoller) Read(ctx context.Context, q logic.Quantity) (float64, bool, error) {
	return p.cache.Read(ctx, q, 0)
}

// qingping builds a Qingping advertisement. battery < 0 omits the battery record.
func qingping(tempC, humPct float64, battery int) []byte {
	b := []byte{0x88, 0x10, 0xCD, 0xAB, 0x10, 0x34, 0x2D, 0x58, 0x01, 0x04, 0, 0, 0, 0}
	binary.LittleEndian.PutUint16(b[10:12], uint16(int16(math.Round(tempC*10))))
	binary.LittleEndian.PutUint16(b[12:14], uint16(math.Round(humPct*10)))
	if battery >= 0 {
		b = append(b, 0x02, 0x01, byte(battery))
	}
	return b
}

type harness struct {
	t        *testing.T
	clock    *clock
	cache    *poller.Cache
	entities []*sensor.Entity
	pub      *mqtt.FakePublisher
}

func newHarness(t *testing.T, median int, qs ...logic.Quantity) *harness {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	h := &harness{
		t:     t,
		clock: c,
		cache: poller.NewCache(5*time.Minute, c.Now),
		pub:   mqtt.NewFakePublisher(),
	}
	h.pub.Topics = mqtt.NewTopics(address, "")
	for _, q := range qs {
		e, err := sensor.New(q, "MiTemp BT", median, false, nil)
		if err != nil {
			t.Fatalf("sensor.New: %v", err)
		}
		h.entities = append(h.entities, e)
	}
	return h
}

func (h *harness) advertise(data []byte) {
	h.t.Helper()
	r, err := poller.DecodeServiceData(poller.UUIDQingping, data)
	if err != nil {
		h.t.Fatalf("decode: %v", err)
	}
	if r.Address != address {
		h.t.Fatalf("address: got %q", r.Address)
	}
	h.cache.Store(r)
}

// cycle mirrors the daemon's update cycle.
func (h *harness) cycle() {
	for _, e := range h.entities {
		r := e.Update(context.Background(), cachePoller{h.cache})
		if e.ShouldPublish(r) {
			h.pub.PublishState(mqtt.State{
				Timestamp: h.clock.Now(),
				Quantity:  e.Quantity(),
				Value:     r.Value,
				Known:     r.Known,
			})
		}
	}
	h.clock.Advance(time.Minute)
}

func (h *harness) statesFor(q logic.Quantity) []mqtt.State {
	var out []mqtt.State
	for _, s := range h.pub.States {
		if s.Quantity == q {
			out = append(out, s)
		}
	}
	return out
}

// TestIntegrationSpikeSuppressed runs advertisements through the decoder,
// cache, filter and publisher. A single outlier never reaches MQTT.
func TestIntegrationSpikeSuppressed(t *testing.T) {
	h := newHarness(t, 3, logic.QuantityTemperature, logic.QuantityHumidity)

	for _, temp := range []float64{21.2, 21.3, 35.0, 21.4} {
		h.advertise(qingping(temp, 45.0, 90))
		h.cycle()
	}

	temps := h.statesFor(logic.QuantityTemperature)
	if len(temps) != 2 {
		t.Fatalf("expected 2 temperature states, got %+v", temps)
	}
	if temps[0].Value != 21.3 || temps[1].Value != 21.4 {
		t.Errorf("temperatures: got %v, %v; want 21.3, 21.4", temps[0].Value, temps[1].Value)
	}
	for _, s := range temps {
		if s.Value == 35.0 {
			t.Error("outlier was published")
		}
	}

	hums := h.statesFor(logic.QuantityHumidity)
	if len(hums) != 1 || hums[0].Value != 45.0 {
		t.Errorf("humidity: got %+v, want a single 45.0", hums)
	}
}

func TestIntegrationStatePayloadFormat(t *testing.T) {
	h := newHarness(t, 1, logic.QuantityTemperature)

	h.advertise(qingping(-5.5, 80.0, 90))
	h.cycle()

	if len(h.pub.StatePayloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(h.pub.StatePayloads))
	}
	expected := `{"timestamp":"2026-01-01T12:00:00Z","quantity":"temperature","value":-5.5}`
	if string(h.pub.StatePayloads[0]) != expected {
		t.Errorf("payload:\ngot:  %s\nwant: %s", h.pub.StatePayloads[0], expected)
	}
}

// TestIntegrationSilentSensorFreezesValue: once the cache expires every read
// is a fault, which leaves the published value untouched.
func TestIntegrationSilentSensorFreezesValue(t *testing.T) {
	h := newHarness(t, 3, logic.QuantityTemperature)

	for _, temp := range []float64{20.0, 20.5, 21.0} {
		h.advertise(qingping(temp, 50, 90))
		h.cycle()
	}
	h.clock.Advance(10 * time.Minute)
	for i := 0; i < 5; i++ {
		h.cycle()
	}

	if len(h.pub.States) != 1 {
		t.Fatalf("expected only the first median, got %+v", h.pub.States)
	}
	snap := h.entities[0].Snapshot()
	if !snap.Known || snap.Value != 20.5 {
		t.Errorf("value: got %v/%v, want 20.5/known", snap.Value, snap.Known)
	}
	if snap.Counts.Fault != 5 {
		t.Errorf("faults: got %d, want 5", snap.Counts.Fault)
	}
	if len(snap.Samples) != 3 {
		t.Errorf("window should be untouched, got %v", snap.Samples)
	}

	// The sensor comes back and the window keeps rolling.
	h.advertise(qingping(22.0, 50, 90))
	h.cycle()
	if got := h.statesFor(logic.QuantityTemperature); len(got) != 2 || got[1].Value != 21.0 {
		t.Errorf("after recovery: got %+v, want second state 21.0", got)
	}
}

// TestIntegrationMissingQuantityDrains: advertisements without a battery
// record are NoData for battery and eventually make it unknown.
func TestIntegrationMissingQuantityDrains(t *testing.T) {
	h := newHarness(t, 2, logic.QuantityBattery)

	h.advertise(qingping(20, 50, 90))
	h.cycle()
	h.advertise(qingping(20, 50, 88))
	h.cycle()

	h.clock.Advance(10 * time.Minute) // let the cached battery expire
	for i := 0; i < 3; i++ {
		h.advertise(qingping(20, 50, -1))
		h.cycle()
	}

	states := h.statesFor(logic.QuantityBattery)
	if len(states) != 2 {
		t.Fatalf("expected 2 battery states, got %+v", states)
	}
	if !states[0].Known || states[0].Value != 88 {
		t.Errorf("state 0: got %+v, want 88 (lower middle of 88, 90)", states[0])
	}
	if states[1].Known {
		t.Errorf("state 1: expected unknown, got %+v", states[1])
	}

	var payload mqtt.StatePayload
	if err := json.Unmarshal(h.pub.StatePayloads[1], &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.Value != nil {
		t.Errorf("unknown value should serialize as null, got %v", *payload.Value)
	}
}

func TestIntegrationNeverSeenIsTimeoutFault(t *testing.T) {
	h := newHarness(t, 1, logic.QuantityTemperature)

	_, _, err := cachePoller{h.cache}.Read(context.Background(), logic.QuantityTemperature)
	if !errors.Is(err, poller.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	h.cycle()
	if len(h.pub.States) != 0 {
		t.Errorf("expected no states, got %+v", h.pub.States)
	}
	if h.entities[0].Snapshot().LastOutcome != logic.OutcomeFault {
		t.Error("expected a fault outcome")
	}
}

func TestIntegrationStatusReflectsEntities(t *testing.T) {
	h := newHarness(t, 3, logic.QuantityTemperature, logic.QuantityHumidity)
	tracker := status.NewTracker(h.clock.Now(), status.Config{Address: address, Median: 3})

	for _, temp := range []float64{21.0, 21.5, 22.0} {
		h.advertise(qingping(temp, 40, 90))
		h.cycle()
		snaps := make([]sensor.Snapshot, 0, len(h.entities))
		for _, e := range h.entities {
			snaps = append(snaps, e.Snapshot())
		}
		tracker.Update(snaps, h.cache.LastSeen())
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tracker.Snapshot()), &parsed); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if !parsed.Status.Ready {
		t.Error("expected ready once both windows are full")
	}
	if len(parsed.Status.Sensors) != 2 {
		t.Fatalf("sensors: got %d, want 2", len(parsed.Status.Sensors))
	}
	temp := parsed.Status.Sensors[0]
	if temp.Value == nil || *temp.Value != 21.5 {
		t.Errorf("temperature: got %v, want 21.5", temp.Value)
	}
	if temp.Window == nil || temp.Window.Min != 21.0 || temp.Window.Max != 22.0 {
		t.Errorf("window stats: got %+v", temp.Window)
	}
	if parsed.Status.LastSeen == "" {
		t.Error("expected last_seen to be set")
	}
}
