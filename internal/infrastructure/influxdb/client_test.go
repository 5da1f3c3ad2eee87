package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/usbflow-core/internal/infrastructure/config"
	"github.com/nerrad567/usbflow-core/internal/usb"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "test-token",
		Org:     "usbflow",
		Bucket:  "telemetry",
	}

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWrites_DisconnectedNoop(t *testing.T) {
	// A disconnected client must drop writes silently; panics here would
	// take the scan loop down with them.
	c := &Client{}

	c.WriteScanStats("node-1", usb.ScanStats{Devices: 3, Duration: time.Second}, usb.Stats{})
	c.WriteMutation("node-1", "set", "success")
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
