package mqtt

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Topics is used to format discovery payloads.
	Topics Topics
	// Discoveries contains all entity configs that were published.
	Discoveries []Discovery
	// DiscoveryPayloads contains the JSON payloads for entity configs.
	DiscoveryPayloads [][]byte
	// States contains all entity states that were published.
	States []State
	// StatePayloads contains the JSON payloads for entity states.
	StatePayloads [][]byte
	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent
	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte
	// PublishError, if set, will be returned by PublishState and PublishDiscovery.
	PublishError error
	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error
	// Closed tracks if Close was called.
	Closed bool
	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Topics: NewTopics("00:00:00:00:00:00", "")}
}

// PublishDiscovery records the entity config.
func (f *FakePublisher) PublishDiscovery(d Discovery) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatDiscoveryPayload(f.Topics, d)
	if err != nil {
		return err
	}
	f.Discoveries = append(f.Discoveries, d)
	f.DiscoveryPayloads = append(f.DiscoveryPayloads, payload)
	return nil
}

// PublishState records the entity state.
func (f *FakePublisher) PublishState(s State) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatePayload(s)
	if err != nil {
		return err
	}
	f.States = append(f.States, s)
	f.StatePayloads = append(f.StatePayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Discoveries = nil
	f.DiscoveryPayloads = nil
	f.States = nil
	f.StatePayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
