// Package influxdb provides InfluxDB connectivity for USB Power Flow Core.
//
// It wraps the official influxdb-client-go v2 library with patterns for
// connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Scan telemetry (device counts, denied subtrees, scan duration)
//   - Power-state distribution over time
//   - Mutation outcomes per node
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteScanStats("workstation-12", stats, snapshot)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
