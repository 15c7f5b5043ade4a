package onewire

import "errors"

// Domain errors for the 1-Wire bridge package.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but the client is not connected to owserver.
	ErrNotConnected = errors.New("onewire: not connected to owserver")

	// ErrConnectionFailed is returned when the connection to owserver fails.
	ErrConnectionFailed = errors.New("onewire: connection to owserver failed")

	// ErrTransport is returned when an owserver request fails at the
	// connection or protocol level.
	ErrTransport = errors.New("onewire: owserver transport failure")

	// ErrUnknownFamily is returned when a device family code has no entry
	// in the device catalog.
	ErrUnknownFamily = errors.New("onewire: unknown device family")

	// ErrUnknownChannel is returned when a channel name has no entry in
	// the unit catalog. Catalogs are static, so this indicates an
	// inconsistency rather than a runtime condition.
	ErrUnknownChannel = errors.New("onewire: unknown sensor channel")

	// ErrSensorUnavailable is returned when a sysbus device file is missing,
	// typically because the sensor was disconnected.
	ErrSensorUnavailable = errors.New("onewire: sensor unavailable")

	// ErrDataIntegrity is returned when the kernel w1 driver reports a CRC
	// mismatch or produces a malformed response.
	ErrDataIntegrity = errors.New("onewire: data integrity failure")
)
