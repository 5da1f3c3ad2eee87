// Package mqtt publishes USB Power Flow fleet events to an MQTT broker.
//
// The publisher is optional. When enabled, each node announces its
// online status with a Last Will and Testament, and publishes snapshot
// summaries, mutation outcomes, and elevation transitions so fleet
// tooling can watch many machines from one broker.
//
//	usbflow node ─→ MQTT Broker ←─ fleet dashboards / collectors
//
// The client is publish-only: nothing in the service reacts to inbound
// messages, so no subscription machinery is carried.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.FleetSnapshot(cfg.MQTT.Broker.ClientID)
//	client.PublishJSON(topic, snapshotSummary, 1, true)
package mqtt
