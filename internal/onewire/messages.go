package onewire

import (
	"time"
)

// MQTT message types for communication between the 1-Wire Bridge and
// Gray Logic Core. These types implement the bridge interface
// specification (docs/architecture/bridge-interface.md).

// StateMessage is sent from Bridge to Core after each poll cycle.
// Topic: graylogic/state/onewire/{entity_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// SensorID is the device serial, e.g. "28.0316A279F7FF".
	SensorID string `json:"sensor_id"`

	// Timestamp is when the reading was taken (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Channel is the measured quantity, e.g. "temperature".
	Channel string `json:"channel"`

	// State is the normalized reading: a float rounded to one decimal,
	// or an integer for counter channels. Null while the sensor is
	// unavailable.
	State any `json:"state"`

	// RawValue is the unrounded reading, omitted while unavailable.
	RawValue *float64 `json:"raw_value,omitempty"`

	// Unit is the unit symbol, e.g. "°C".
	Unit string `json:"unit"`

	// DeviceClass is the classification tag, empty for counters.
	DeviceClass string `json:"device_class,omitempty"`

	// DeviceFile is the bus locator the value was read from.
	DeviceFile string `json:"device_file"`

	// Protocol is the protocol identifier ("onewire").
	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the bridge is not operating correctly.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthOffline indicates the bridge is not connected. Consumers
	// infer it from the system status LWT rather than a health report.
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: graylogic/health/onewire
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier (e.g., "onewire").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains owserver connection details, omitted when
	// the bridge runs sysbus-only.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// SensorsManaged is the number of discovered sensor channels.
	SensorsManaged int `json:"sensors_managed"`

	// SensorsAvailable is how many of them responded last cycle.
	SensorsAvailable int `json:"sensors_available"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the owserver connection state.
type ConnectionStatus struct {
	// Status is the connection status ("connected", "disconnected").
	Status string `json:"status"`

	// Address is the owserver address.
	Address string `json:"address"`

	// ConnectedSince is when the connection was established.
	ConnectedSince *time.Time `json:"connected_since,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// CyclesTotal is the number of completed poll cycles.
	CyclesTotal uint64 `json:"cycles_total"`

	// ReadsTotal is the number of successful sensor reads.
	ReadsTotal uint64 `json:"reads_total"`

	// ReadFailuresTotal is the number of failed sensor reads.
	ReadFailuresTotal uint64 `json:"read_failures_total"`

	// PublishesTotal is the number of state messages published.
	PublishesTotal uint64 `json:"publishes_total"`

	// LastCycleMillis is the duration of the most recent cycle.
	LastCycleMillis int64 `json:"last_cycle_ms"`
}

// DiscoveryMessage is sent from Bridge to Core to announce discovered
// sensors after a bus scan.
// Topic: graylogic/discovery/onewire
type DiscoveryMessage struct {
	// Timestamp is when discovery was performed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Sensors contains the discovered sensor channels.
	Sensors []DiscoveredSensor `json:"sensors"`
}

// DiscoveredSensor represents one sensor channel found during discovery.
type DiscoveredSensor struct {
	// Protocol is the protocol identifier.
	Protocol string `json:"protocol"`

	// SensorID is the device serial.
	SensorID string `json:"sensor_id"`

	// Channel is the measured quantity.
	Channel string `json:"channel"`

	// Unit is the unit symbol.
	Unit string `json:"unit"`

	// DeviceClass is the classification tag, if any.
	DeviceClass string `json:"device_class,omitempty"`

	// Model is the device family or board type string.
	Model string `json:"model"`

	// Manufacturer is the device manufacturer.
	Manufacturer string `json:"manufacturer"`

	// Backend is the bus access method the sensor was found on.
	Backend string `json:"backend"`

	// SuggestedName is a suggested display name for the sensor.
	SuggestedName string `json:"suggested_name,omitempty"`
}

// manufacturer applies to every device the catalogs know about.
const manufacturer = "Maxim Integrated"
