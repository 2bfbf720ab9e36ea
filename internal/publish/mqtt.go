package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/occupancy-counter/internal/counting"
)

const (
	// DefaultTopic is the topic prefix for crossing events.
	DefaultTopic = "occupancy/events"
	// EventQoS is the delivery guarantee for crossing events.
	EventQoS byte = 1

	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Client is the part of an MQTT client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends crossing events to an MQTT broker as JSON.
type Publisher struct {
	client Client
	topic  string
	now    func() time.Time

	mu        sync.Mutex
	published map[string]uint64
	errors    uint64
}

// Stats reports what a publisher has sent.
type Stats struct {
	Published map[string]uint64
	Errors    uint64
}

// NewPublisher returns a publisher writing below topic on client. An empty
// topic uses DefaultTopic.
func NewPublisher(client Client, topic string) *Publisher {
	topic = strings.TrimRight(topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		client:    client,
		topic:     topic,
		now:       time.Now,
		published: make(map[string]uint64),
	}
}

// Connect dials broker (host:port or a full URL) with automatic reconnects.
func Connect(ctx context.Context, broker, clientID string) (mqtt.Client, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.WithFields(log.Fields{"broker": broker, "client_id": clientID}).Info("MQTT connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).WithField("broker", broker).Warn("MQTT connection lost, will reconnect")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}

// EventPayload is the published form of a crossing event.
type EventPayload struct {
	RoomID      string  `json:"room_id"`
	Direction   string  `json:"direction"`
	Kind        string  `json:"kind"`
	TrackID     int     `json:"track_id"`
	Frame       int     `json:"frame"`
	VideoTS     float64 `json:"video_ts"`
	FootX       float64 `json:"foot_x"`
	FootY       float64 `json:"foot_y"`
	Occupancy   int     `json:"occupancy"`
	PublishedAt string  `json:"published_at"`
}

// Topic returns <prefix>/<room_id>/<kind> for ev.
func (p *Publisher) Topic(ev counting.CrossingEvent) string {
	return fmt.Sprintf("%s/%s/%s", p.topic, ev.BoundaryID, ev.Kind)
}

// HandleEvent publishes ev at EventQoS and waits for the broker's
// acknowledgement.
func (p *Publisher) HandleEvent(ctx context.Context, ev counting.CrossingEvent) error {
	payload, err := json.Marshal(EventPayload{
		RoomID:      ev.BoundaryID,
		Direction:   string(ev.Direction),
		Kind:        string(ev.Kind),
		TrackID:     ev.TrackID,
		Frame:       ev.Frame,
		VideoTS:     ev.VideoTime.Seconds(),
		FootX:       ev.Foot.X,
		FootY:       ev.Foot.Y,
		Occupancy:   ev.Occupancy,
		PublishedAt: p.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return p.fail(fmt.Errorf("marshal event: %w", err))
	}

	topic := p.Topic(ev)
	token := p.client.Publish(topic, EventQoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return p.fail(errors.New("publish timeout"))
	case <-ctx.Done():
		return p.fail(ctx.Err())
	}
	if err := token.Error(); err != nil {
		return p.fail(fmt.Errorf("publish to %s: %w", topic, err))
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	log.WithFields(log.Fields{"topic": topic, "size": len(payload)}).Debug("Event published")
	return nil
}

func (p *Publisher) fail(err error) error {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
	return err
}

// Stats returns a snapshot of the publish counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Published: published, Errors: p.errors}
}
