package mqtt

import "fmt"

// Topic constants per the Gray Logic MQTT specification.
// All bridge topics use the flat scheme: graylogic/{category}/{protocol}/{id}
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// Protocol is this bridge's protocol identifier in topic paths.
	Protocol = "onewire"

	// bridgeName identifies this bridge in system status topics.
	bridgeName = "onewire-bridge"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("28-0316a279f7ff-temperature")
//	// Returns: "graylogic/state/onewire/28-0316a279f7ff-temperature"
type Topics struct{}

// State returns the topic for a sensor's state updates.
//
// Example: graylogic/state/onewire/28-0316a279f7ff-temperature
func (Topics) State(sensorID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, sensorID)
}

// Health returns the topic for bridge health status.
//
// Example: graylogic/health/onewire
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// Discovery returns the topic for announcing discovered sensors.
//
// Example: graylogic/discovery/onewire
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// Command returns the topic the bridge listens on for control commands
// (forced poll cycles, bus rescans).
//
// Example: graylogic/command/onewire
func (Topics) Command() string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, Protocol)
}

// SystemStatus returns the topic for the bridge's online/offline status.
// This topic carries the Last Will and Testament message.
//
// Example: graylogic/system/onewire-bridge/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/%s/status", TopicPrefix, bridgeName)
}

// AllStates returns a wildcard pattern matching every sensor state topic
// published by this bridge. Useful for subscribers and tests.
//
// Example: graylogic/state/onewire/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}
