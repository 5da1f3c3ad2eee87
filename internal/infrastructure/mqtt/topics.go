package mqtt

import "fmt"

// Topic prefixes for the usbflow fleet namespace.
//
// Per-node topics follow the scheme: usbflow/fleet/{node_id}/{category}
const (
	// TopicPrefix is the base for all usbflow topics.
	TopicPrefix = "usbflow"

	// TopicPrefixFleet is the base for per-node fleet topics.
	TopicPrefixFleet = "usbflow/fleet"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "usbflow/system"
)

// Topics provides builders for usbflow MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.FleetSnapshot("workstation-12")
//	// Returns: "usbflow/fleet/workstation-12/snapshot"
type Topics struct{}

// SystemStatus returns the topic for node online/offline status.
// Retained, and the target of the Last Will and Testament.
//
// Example: usbflow/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// FleetSnapshot returns the topic for device snapshot summaries.
//
// Example: usbflow/fleet/workstation-12/snapshot
func (Topics) FleetSnapshot(nodeID string) string {
	return fmt.Sprintf("%s/%s/snapshot", TopicPrefixFleet, nodeID)
}

// FleetMutation returns the topic for power-flag mutation outcomes.
//
// Example: usbflow/fleet/workstation-12/mutations
func (Topics) FleetMutation(nodeID string) string {
	return fmt.Sprintf("%s/%s/mutations", TopicPrefixFleet, nodeID)
}

// FleetElevation returns the topic for elevation state transitions.
//
// Example: usbflow/fleet/workstation-12/elevation
func (Topics) FleetElevation(nodeID string) string {
	return fmt.Sprintf("%s/%s/elevation", TopicPrefixFleet, nodeID)
}
