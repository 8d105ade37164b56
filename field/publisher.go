package field

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher announces pipeline progress over MQTT so long batch runs can
// be followed from a dashboard. Publishing is entirely optional: with no
// broker configured every call is a no-op.

// StageEvent is the JSON payload published per pipeline stage.
type StageEvent struct {
	RunID     string         `json:"runId"`
	Stage     string         `json:"stage"`
	Counts    map[string]int `json:"counts,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Publisher wraps an MQTT client for stage events.
// A nil client disables publishing.
type Publisher struct {
	client mqtt.Client
	prefix string
	qos    byte
}

// NewPublisher builds a publisher. The topic prefix defaults to "fieldseg"
// and can be overridden by config or the MQTT_PUBLISH_PREFIX env var.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "fieldseg"
	}
	return &Publisher{client: client, prefix: prefix, qos: 0}
}

// ConnectPublisher dials the broker from config and returns a ready
// publisher. A nil config disables publishing and returns a no-op
// publisher, not an error.
func ConnectPublisher(cfg *MQTTConfig) (*Publisher, error) {
	if cfg == nil || cfg.Broker == "" {
		return NewPublisher(nil, ""), nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "fieldseg"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return NewPublisher(client, cfg.TopicPrefix), nil
}

// PublishStage publishes one stage event. Failures are logged and
// swallowed: progress events never fail a batch.
func (p *Publisher) PublishStage(runID, stage string, counts map[string]int) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	event := StageEvent{
		RunID:     runID,
		Stage:     stage,
		Counts:    counts,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("mqtt: marshaling stage event: %v", err)
		return
	}

	topic := fmt.Sprintf("%s/runs/%s/%s", p.prefix, runID, stage)
	token := p.client.Publish(topic, p.qos, false, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		log.Printf("mqtt: publishing to %s: %v", topic, token.Error())
	}
}

// Disconnect closes the broker connection if one is open.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
