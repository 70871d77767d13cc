// Package publish republishes poll snapshots to an MQTT broker so other
// consumers (home dashboards, automations) can follow the organism without
// hitting the backend themselves.
//
// Each tick publishes one retained JSON message on the configured topic at
// QoS 0. The broker being down never affects polling: publishes are fire and
// forget and reconnection is left to the MQTT library.
package publish

import (
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	"lucamon/status"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures the publisher.
type Options struct {
	Broker string
	Port   int
	Topic  string
}

// Publisher mirrors snapshots onto an MQTT topic.
type Publisher struct {
	opts   Options
	client mqtt.Client
	logger *log.Logger
}

// payload is the wire shape of a published tick. It is the snapshot plus a
// schema marker so downstream consumers can detect format changes.
type payload struct {
	Schema   string          `json:"schema"`
	Snapshot status.Snapshot `json:"snapshot"`
}

const schemaVersion = "lucamon/1"

// New builds a publisher. Connect must be called before Publish does
// anything useful.
func New(opts Options, logger *log.Logger) *Publisher {
	if opts.Port <= 0 {
		opts.Port = 1883
	}
	if opts.Topic == "" {
		opts.Topic = "lucamon/status"
	}
	return &Publisher{opts: opts, logger: logger}
}

// Connect establishes the broker connection with auto-reconnect.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.opts.Broker, p.opts.Port))
	opts.SetClientID(fmt.Sprintf("lucamon-%d", time.Now().Unix()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logf("mqtt: connected to %s:%d, publishing on %s", p.opts.Broker, p.opts.Port, p.opts.Topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logf("mqtt: connection lost: %v", err)
	})

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt: connect %s:%d: %w", p.opts.Broker, p.opts.Port, token.Error())
	}
	return nil
}

// Publish sends one snapshot. Called from the poll goroutine, so it never
// waits on the token: a dead broker costs an encode, nothing more.
func (p *Publisher) Publish(snap status.Snapshot) {
	if p == nil || p.client == nil || !p.client.IsConnected() {
		return
	}
	body, err := encodePayload(snap)
	if err != nil {
		p.logf("mqtt: encode snapshot: %v", err)
		return
	}
	p.client.Publish(p.opts.Topic, 0, true, body)
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p == nil || p.client == nil {
		return
	}
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func encodePayload(snap status.Snapshot) ([]byte, error) {
	return json.Marshal(payload{Schema: schemaVersion, Snapshot: snap})
}

func (p *Publisher) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
