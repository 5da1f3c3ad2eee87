package mqtt

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/usbflow-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "usbflow-test",
			TLS:      false,
		},
		QoS: 1,
	}
}

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "usbflow/system/status"},
		{"fleet snapshot", topics.FleetSnapshot("node-1"), "usbflow/fleet/node-1/snapshot"},
		{"fleet mutation", topics.FleetMutation("node-1"), "usbflow/fleet/node-1/mutations"},
		{"fleet elevation", topics.FleetElevation("node-1"), "usbflow/fleet/node-1/elevation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Option Builder Tests
// =============================================================================

func TestBuildClientOptions_BrokerURL(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "usbflow-test" {
		t.Errorf("client ID = %q, want usbflow-test", opts.ClientID)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("expected TLS config to be set")
	}
}

func TestBuildClientOptions_Auth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "operator"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "operator" {
		t.Errorf("username = %q, want operator", opts.Username)
	}
	if opts.Password != "secret" {
		t.Errorf("password = %q, want secret", opts.Password)
	}
}

// =============================================================================
// Payload Builder Tests
// =============================================================================

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("node-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"node-1"`) {
		t.Errorf("online payload missing fields: %s", online)
	}

	offline := buildOfflinePayload("node-1")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing fields: %s", offline)
	}
}

// =============================================================================
// Publish Validation Tests
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	// Disconnected client: validation errors surface before any network use
	c := &Client{cfg: testConfig()}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}

	if err := c.Publish("usbflow/test", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad QoS error = %v, want ErrInvalidQoS", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := c.Publish("usbflow/test", oversized, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}

	if err := c.Publish("usbflow/test", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := &Client{cfg: testConfig()}

	// Channels cannot be marshalled
	err := c.PublishJSON("usbflow/test", make(chan int), 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("error = %v, want ErrPublishFailed", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{cfg: testConfig()}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
