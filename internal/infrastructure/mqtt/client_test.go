package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State("28-0316a279f7ff-temperature"), "graylogic/state/onewire/28-0316a279f7ff-temperature"},
		{"health", topics.Health(), "graylogic/health/onewire"},
		{"discovery", topics.Discovery(), "graylogic/discovery/onewire"},
		{"command", topics.Command(), "graylogic/command/onewire"},
		{"system status", topics.SystemStatus(), "graylogic/system/onewire-bridge/status"},
		{"all states wildcard", topics.AllStates(), "graylogic/state/onewire/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			ClientID: "onewire-bridge",
			TLS:      true,
		},
		Auth: config.MQTTAuthConfig{
			Username: "bridge",
			Password: "secret",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("broker URL = %q, want ssl://broker.local:8883", got)
	}
	if opts.ClientID != "onewire-bridge" {
		t.Errorf("client ID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" {
		t.Errorf("username = %q", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect should be enabled")
	}
}

func TestBuildClientOptionsPlainTCP(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "onewire-bridge",
		},
	}

	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("broker URL = %q, want tcp://localhost:1883", got)
	}
}

func TestSystemStatusPayload(t *testing.T) {
	online := systemStatusPayload("onewire-bridge", "online", "")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"onewire-bridge"`) {
		t.Errorf("online payload missing client ID: %s", online)
	}
	if strings.Contains(online, `"reason"`) {
		t.Errorf("online payload should omit reason: %s", online)
	}

	offline := systemStatusPayload("onewire-bridge", "offline", "graceful_shutdown")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload missing status: %s", offline)
	}
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	// Client with no broker connection: validation errors fire before any
	// network activity.
	c := &Client{
		subscriptions: make(map[string]subscription),
	}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"qos too high", "graylogic/state/onewire/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "graylogic/state/onewire/x", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{
		subscriptions: make(map[string]subscription),
	}

	handler := func(topic string, payload []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("graylogic/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: got %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("graylogic/#", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: got %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscriptionCount(t *testing.T) {
	c := &Client{
		subscriptions: make(map[string]subscription),
	}

	if got := c.SubscriptionCount(); got != 0 {
		t.Errorf("initial count = %d, want 0", got)
	}

	c.subMu.Lock()
	c.subscriptions["a"] = subscription{topic: "a"}
	c.subscriptions["b"] = subscription{topic: "b"}
	c.subMu.Unlock()

	if got := c.SubscriptionCount(); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
}
