package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jo-hoe/gophotobooth/internal/printing"
)

const (
	KindPrinter = "printer"
	KindPrint   = "print"
)

var ErrBrokerOffline = errors.New("mqtt broker offline")

// Event is the JSON document published for every printer or print change
type Event struct {
	Kind    string    `json:"kind"`
	VenueID string    `json:"venueId"`
	Time    time.Time `json:"time"`
	Data    any       `json:"data"`
}

// Publisher delivers events to interested listeners outside the kiosk
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() {}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         byte   `yaml:"qos"`
}

// MQTTPublisher publishes events to <topicPrefix>/<venueId>/<kind>
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher starts connecting to the broker without waiting for it;
// the client keeps retrying and reconnecting in the background
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "photobooth-kiosk"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("MQTTPublisher: connection lost", "broker", cfg.Broker, "error", err)
	}
	opts.OnConnect = func(mqtt.Client) {
		slog.Info("MQTTPublisher: connected", "broker", cfg.Broker, "client_id", clientID)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
		}
	default:
	}
	return newMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, qos byte) *MQTTPublisher {
	if prefix == "" {
		prefix = "photobooth"
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: 5 * time.Second,
	}
}

// Topic returns the topic an event of the given kind goes to
func (p *MQTTPublisher) Topic(venueID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, venueID, kind)
}

func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Kind, err)
	}

	topic := p.Topic(event.VenueID, event.Kind)
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("%w: dropped %s event", ErrBrokerOffline, event.Kind)
	}
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publish to %s timed out after %s", topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(500)
	}
}

// PrinterEvent wraps a device status change
func PrinterEvent(venueID string, device printing.PrinterDevice) Event {
	return Event{Kind: KindPrinter, VenueID: venueID, Time: time.Now().UTC(), Data: device}
}

// PrintEvent wraps a dispatcher state change
func PrintEvent(venueID string, status printing.Status) Event {
	return Event{Kind: KindPrint, VenueID: venueID, Time: time.Now().UTC(), Data: status}
}
