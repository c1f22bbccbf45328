package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Event types published by the API.
const (
	IncidentCreated       = "incident.created"
	IncidentNotify        = "incident.notify"
	IncidentStatusChanged = "incident.status_changed"
	MaintenanceCompleted  = "maintenance.completed"
	SpillKitNonCompliant  = "spill_kit.non_compliant"
	RestockRequested      = "spill_kit.restock_requested"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Event is the JSON envelope sent on every topic.
type Event struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Publisher delivers domain events to whoever is listening. Callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close()                                     {}

// tokenPublisher is the subset of mqtt.Client used for publishing.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes events as JSON to <prefix>/<event type> at QoS 1.
type MQTTPublisher struct {
	client  tokenPublisher
	prefix  string
	timeout time.Duration
	now     func() time.Time
	close   func()
}

// NewMQTTPublisher connects to brokerURL and returns a ready publisher.
func NewMQTTPublisher(brokerURL, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", brokerURL, err)
	}

	log.WithFields(log.Fields{"broker": brokerURL, "client_id": clientID}).Info("Connected to MQTT broker")
	p := newMQTTPublisher(client, prefix)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newMQTTPublisher(client tokenPublisher, prefix string) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Topic returns the topic an event type is published on.
func (p *MQTTPublisher) Topic(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "/" + eventType
}

func (p *MQTTPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(Event{Type: eventType, At: p.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	token := p.client.Publish(p.Topic(eventType), 1, false, data)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// New returns an MQTT publisher when brokerURL is set, else a NopPublisher.
func New(brokerURL, clientID, prefix string) (Publisher, error) {
	if brokerURL == "" {
		log.Info("MQTT_BROKER_URL not set, event notifications disabled")
		return NopPublisher{}, nil
	}
	return NewMQTTPublisher(brokerURL, clientID, prefix)
}
