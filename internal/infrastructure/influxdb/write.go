package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/usbflow-core/internal/usb"
)

// WriteScanStats records one scan pass: device counts, denied subtrees,
// scan duration, and the power-state distribution of the snapshot.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteScanStats(nodeID string, scan usb.ScanStats, snapshot usb.Stats) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"devices":         scan.Devices,
		"denied_subtrees": scan.DeniedSubtrees,
		"duration_ms":     scan.Duration.Milliseconds(),
		"seq":             int64(snapshot.Seq),
	}
	for state, count := range snapshot.ByPower {
		fields["power_"+string(state)] = count
	}

	point := write.NewPoint(
		"usb_scan",
		map[string]string{"node_id": nodeID},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteMutation records the outcome of one power-flag mutation.
func (c *Client) WriteMutation(nodeID, action, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"usb_mutation",
		map[string]string{
			"node_id": nodeID,
			"action":  action,
			"outcome": outcome,
		},
		map[string]interface{}{"count": 1},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
