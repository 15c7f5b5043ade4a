package influxdb

import "errors"

// Sentinel errors for telemetry operations, checkable with errors.Is().
var (
	// ErrNotConnected indicates the client has no InfluxDB connection.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	// The bridge treats this as fatal at startup; readings still flow to
	// MQTT without telemetry.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is switched off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
