package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/mitemp-sensor/internal/logic"
)

const (
	publishTimeout = 5 * time.Second
	bufferCapacity = 256
)

// RealPublisher publishes to an actual MQTT broker.
// State messages produced while disconnected are buffered and replayed on reconnect.
// Discovery configs are kept apart from the buffer and re-sent on every connect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	logger *slog.Logger

	mu        sync.Mutex
	buf       *ringBuffer
	discovery map[logic.Quantity]bufferedMsg
	announced []logic.Quantity // discovery order
}

func newRealPublisher(topics Topics, logger *slog.Logger) *RealPublisher {
	return &RealPublisher{
		topics:    topics,
		logger:    logger,
		buf:       newRingBuffer(bufferCapacity),
		discovery: make(map[logic.Quantity]bufferedMsg),
	}
}

// NewRealPublisher creates a publisher connected to the given broker.
// The availability topic is set as the will so the host marks entities
// unavailable when the daemon disappears.
func NewRealPublisher(broker, clientID string, topics Topics, logger *slog.Logger) (*RealPublisher, error) {
	p := newRealPublisher(topics, logger.With("component", "mqtt", "broker", broker))

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetWill(topics.Availability(), PayloadOffline, 1, true)

	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// ConnectRetry keeps dialing in the background; messages are buffered until then.
		p.logger.Warn("mqtt broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// PublishDiscovery announces an entity (QoS 1, retained).
// The config is remembered and sent again after every (re)connect.
func (p *RealPublisher) PublishDiscovery(d Discovery) error {
	payload, err := FormatDiscoveryPayload(p.topics, d)
	if err != nil {
		return fmt.Errorf("format discovery payload: %w", err)
	}
	msg := bufferedMsg{topic: p.topics.Discovery(d.Quantity), payload: payload, qos: 1, retained: true}

	p.mu.Lock()
	if _, ok := p.discovery[d.Quantity]; !ok {
		p.announced = append(p.announced, d.Quantity)
	}
	p.discovery[d.Quantity] = msg
	p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		return nil
	}
	return p.send(msg)
}

// PublishState sends an entity state (QoS 0, retained so the host sees the
// latest value after a restart).
func (p *RealPublisher) PublishState(s State) error {
	payload, err := FormatStatePayload(s)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.topics.State(s.Quantity), payload: payload, qos: 0, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - lifecycle events should not be lost
	token := p.client.Publish(p.topics.System(), 1, event.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close marks the sensor offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		token := p.client.Publish(p.topics.Availability(), 1, true, PayloadOffline)
		token.WaitTimeout(publishTimeout)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		if p.buf.push(msg) {
			p.logger.Warn("mqtt: buffer full, dropping oldest", "capacity", bufferCapacity)
		}
		p.mu.Unlock()
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect runs on the paho callback goroutine and must not block on tokens.
// Order: availability, discovery configs, then buffered states.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.logger.Info("mqtt connected")
	c.Publish(p.topics.Availability(), 1, true, PayloadOnline)

	p.mu.Lock()
	configs := make([]bufferedMsg, 0, len(p.announced))
	for _, q := range p.announced {
		configs = append(configs, p.discovery[q])
	}
	dropped := p.buf.dropped
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	for _, m := range configs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	if len(configs) > 0 {
		p.logger.Debug("mqtt: re-sent discovery", "count", len(configs))
	}

	if len(msgs) == 0 {
		return
	}
	p.logger.Info("mqtt: replaying buffered messages", "count", len(msgs), "dropped", dropped)
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}
