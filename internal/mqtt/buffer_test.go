package mqtt

import (
	"fmt"
	"testing"
)

func stateMsg(i int) bufferedMsg {
	return bufferedMsg{topic: "mitemp/test/temperature/state", payload: []byte{byte(i)}}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(4)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferKeepsOrder(t *testing.T) {
	rb := newRingBuffer(8)
	for i := 0; i < 3; i++ {
		rb.push(stateMsg(i))
	}

	got := rb.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, msg := range got {
		if msg.payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, msg.payload[0])
		}
	}
	if rb.len() != 0 {
		t.Errorf("len after drain: got %d, want 0", rb.len())
	}
}

func TestRingBufferOverflowReportsOnce(t *testing.T) {
	rb := newRingBuffer(3)
	reports := 0
	for i := 0; i < 7; i++ {
		if rb.push(stateMsg(i)) {
			reports++
		}
	}
	if reports != 1 {
		t.Errorf("overflow reports: got %d, want 1", reports)
	}
	if rb.dropped != 4 {
		t.Errorf("dropped: got %d, want 4", rb.dropped)
	}

	got := rb.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, msg := range got {
		want := byte(i + 4) // oldest 4 were overwritten
		if msg.payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, msg.payload[0])
		}
	}

	// A new overflow after draining is reported again.
	for i := 0; i < 3; i++ {
		rb.push(stateMsg(i))
	}
	if !rb.push(stateMsg(9)) {
		t.Error("expected overflow report after drain")
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{
		topic:    "homeassistant/sensor/x/temperature/config",
		payload:  []byte(`{"name":"x"}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != "homeassistant/sensor/x/temperature/config" || string(m.payload) != `{"name":"x"}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %s", fmt.Sprintf("%+v", m))
	}
}
