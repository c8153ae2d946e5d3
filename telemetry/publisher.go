// Package telemetry mirrors bus traffic to an MQTT broker and accepts send
// requests from it. Events and requests are msgpack encoded.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/ystepanoff/ibusgw/protocol"
	"github.com/ystepanoff/ibusgw/transport"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	requestTimeout = time.Second
	backlog        = 64
)

var ErrNotConnected = errors.New("mqtt not connected")

// Config describes the broker connection and topics.
type Config struct {
	Broker    string
	ClientID  string
	Instance  string
	TxTopic   string
	RxTopic   string
	SendTopic string
	QoS       byte
}

// Sender is the part of the transmitter that remote requests drive.
type Sender interface {
	SendWithTag(ctx context.Context, msg []byte, sync, prepend bool, tag int) error
	Cancel(ctx context.Context, tag int) (int, error)
}

// Publisher is a transport.Observer that publishes every packet as an Event.
// Observe calls never block: events are handed to Run through a bounded
// backlog and dropped when it is full.
type Publisher struct {
	cfg    Config
	log    zerolog.Logger
	client mqtt.Client
	events chan Event
	now    func() time.Time

	mu        sync.RWMutex
	published map[Direction]uint64
	dropped   uint64
	errors    uint64
	connected bool
}

var _ transport.Observer = (*Publisher)(nil)

func NewPublisher(cfg Config, log zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:       cfg,
		log:       log.With().Str("component", "telemetry").Logger(),
		events:    make(chan Event, backlog),
		now:       time.Now,
		published: make(map[Direction]uint64),
	}
}

// Connect establishes the broker connection. The client reconnects on its own
// afterwards.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.log.Info().Str("broker", p.cfg.Broker).Str("client_id", p.cfg.ClientID).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.log.Warn().Err(err).Str("broker", p.cfg.Broker).Msg("mqtt connection lost, will auto-reconnect")
	}

	p.client = mqtt.NewClient(opts)
	p.log.Info().Str("broker", p.cfg.Broker).Msg("connecting to mqtt broker")

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Subscribe forwards send requests arriving on the send topic to s.
func (p *Publisher) Subscribe(s Sender) error {
	if p.client == nil {
		return ErrNotConnected
	}
	token := p.client.Subscribe(p.cfg.SendTopic, p.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		if err := p.handleSend(s, m.Payload()); err != nil {
			p.log.Warn().Err(err).Str("topic", m.Topic()).Msg("send request rejected")
		}
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s failed: %w", p.cfg.SendTopic, err)
	}
	p.log.Info().Str("topic", p.cfg.SendTopic).Msg("accepting send requests")
	return nil
}

func (p *Publisher) handleSend(s Sender, payload []byte) error {
	req, err := DecodeSendRequest(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if req.Cancel {
		n, err := s.Cancel(ctx, req.Tag)
		if err != nil {
			return fmt.Errorf("cancel tag %d: %w", req.Tag, err)
		}
		p.log.Debug().Int("tag", req.Tag).Int("removed", n).Msg("remote cancel")
		return nil
	}
	if err := s.SendWithTag(ctx, req.Data, req.Sync, req.Prepend, req.Tag); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	p.log.Debug().Hex("data", req.Data).Int("tag", req.Tag).Msg("remote send queued")
	return nil
}

func (p *Publisher) ObserveTx(pkt protocol.Packet) { p.observe(DirectionTx, pkt) }

func (p *Publisher) ObserveRx(pkt protocol.Packet) { p.observe(DirectionRx, pkt) }

func (p *Publisher) observe(dir Direction, pkt protocol.Packet) {
	ev := newEvent(p.cfg.Instance, dir, pkt, p.now())
	select {
	case p.events <- ev:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

// Run publishes queued events until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			if err := p.publish(ev); err != nil {
				p.log.Debug().Err(err).Str("dir", string(ev.Direction)).Msg("event not published")
			}
		}
	}
}

func (p *Publisher) topic(dir Direction) string {
	if dir == DirectionTx {
		return p.cfg.TxTopic
	}
	return p.cfg.RxTopic
}

func (p *Publisher) publish(ev Event) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}
	payload, err := ev.Marshal()
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := p.client.Publish(p.topic(ev.Direction), p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[ev.Direction]++
	p.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.log.Info().Msg("mqtt disconnected")
	}
	p.setConnected(false)
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published map[Direction]uint64
	Dropped   uint64
	Errors    uint64
}

func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[Direction]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.connected,
		Published: published,
		Dropped:   p.dropped,
		Errors:    p.errors,
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
