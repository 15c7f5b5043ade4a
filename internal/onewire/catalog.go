package onewire

import (
	"fmt"
	"strings"
)

// Unit symbols for sensor channels.
const (
	UnitCelsius  = "°C"
	UnitPercent  = "%"
	UnitMillibar = "mbar"
	UnitCentibar = "cbar"
	UnitLux      = "lx"
	UnitVolt     = "V"
	UnitAmpere   = "A"
	UnitCount    = "count"
)

// Device classification tags, matching Core's sensor taxonomy.
const (
	ClassTemperature = "temperature"
	ClassHumidity    = "humidity"
	ClassPressure    = "pressure"
	ClassIlluminance = "illuminance"
	ClassVoltage     = "voltage"
	ClassCurrent     = "current"
)

// hobbyBoardMarker identifies the family code reserved for specialized
// hobby boards. Their real identity comes from the device type string.
const hobbyBoardMarker = "EF"

// Channel is one logical measurable quantity exposed by a device, with the
// relative owfs path used to read its raw value.
type Channel struct {
	Name string
	Path string
}

// deviceChannels maps a standard family code to the channels it exposes.
// Channel order matters for stable sensor enumeration.
var deviceChannels = map[string][]Channel{
	"10": {{"temperature", "temperature"}},
	"12": {
		{"temperature", "TAI8570/temperature"},
		{"pressure", "TAI8570/pressure"},
	},
	"22": {{"temperature", "temperature"}},
	"26": {
		{"temperature", "temperature"},
		{"humidity", "humidity"},
		{"humidity_hih3600", "HIH3600/humidity"},
		{"humidity_hih4000", "HIH4000/humidity"},
		{"humidity_hih5030", "HIH5030/humidity"},
		{"humidity_htm1735", "HTM1735/humidity"},
		{"pressure", "B1-R1-A/pressure"},
		{"illuminance", "S3-R1-A/illuminance"},
		{"voltage_VAD", "VAD"},
		{"voltage_VDD", "VDD"},
		{"current", "IAD"},
	},
	"28": {{"temperature", "temperature"}},
	"3B": {{"temperature", "temperature"}},
	"42": {{"temperature", "temperature"}},
	"1D": {
		{"counter_a", "counter.A"},
		{"counter_b", "counter.B"},
	},
}

// hobbyBoardChannels maps an EF board's type string to its channels.
// These boards are only reachable through owserver.
var hobbyBoardChannels = map[string][]Channel{
	"HobbyBoards_EF": {
		{"humidity", "humidity/humidity_corrected"},
		{"humidity_raw", "humidity/humidity_raw"},
		{"temperature", "humidity/temperature"},
	},
	"HB_MOISTURE_METER": {
		{"moisture_0", "moisture/sensor.0"},
		{"moisture_1", "moisture/sensor.1"},
		{"moisture_2", "moisture/sensor.2"},
		{"moisture_3", "moisture/sensor.3"},
	},
}

// sysbusFamilies lists the families the kernel w1 driver can read.
// All of them are temperature-only devices.
var sysbusFamilies = map[string]bool{
	"10": true,
	"22": true,
	"28": true,
	"3B": true,
	"42": true,
}

// ChannelUnit describes the physical quantity a channel measures.
type ChannelUnit struct {
	// Category is the human-readable measurement category.
	Category string

	// Unit is the unit symbol readings are expressed in.
	Unit string

	// DeviceClass is the classification tag, empty for counters.
	DeviceClass string
}

// channelUnits maps every channel name emitted by the device catalogs
// (including the wetness remaps) to its unit metadata.
var channelUnits = map[string]ChannelUnit{
	"temperature":      {"temperature", UnitCelsius, ClassTemperature},
	"humidity":         {"humidity", UnitPercent, ClassHumidity},
	"humidity_hih3600": {"humidity", UnitPercent, ClassHumidity},
	"humidity_hih4000": {"humidity", UnitPercent, ClassHumidity},
	"humidity_hih5030": {"humidity", UnitPercent, ClassHumidity},
	"humidity_htm1735": {"humidity", UnitPercent, ClassHumidity},
	"humidity_raw":     {"humidity", UnitPercent, ClassHumidity},
	"pressure":         {"pressure", UnitMillibar, ClassPressure},
	"illuminance":      {"illuminance", UnitLux, ClassIlluminance},
	"wetness_0":        {"wetness", UnitPercent, ClassHumidity},
	"wetness_1":        {"wetness", UnitPercent, ClassHumidity},
	"wetness_2":        {"wetness", UnitPercent, ClassHumidity},
	"wetness_3":        {"wetness", UnitPercent, ClassHumidity},
	"moisture_0":       {"moisture", UnitCentibar, ClassPressure},
	"moisture_1":       {"moisture", UnitCentibar, ClassPressure},
	"moisture_2":       {"moisture", UnitCentibar, ClassPressure},
	"moisture_3":       {"moisture", UnitCentibar, ClassPressure},
	"counter_a":        {"counter", UnitCount, ""},
	"counter_b":        {"counter", UnitCount, ""},
	"voltage_VAD":      {"voltage", UnitVolt, ClassVoltage},
	"voltage_VDD":      {"voltage", UnitVolt, ClassVoltage},
	"current":          {"current", UnitAmpere, ClassCurrent},
}

// ChannelsForFamily returns the ordered channel list for a family code.
//
// For hobby boards (family EF), the lookup key is the device type string
// reported by owserver rather than the family code itself.
//
// Parameters:
//   - family: Family code, or board type string when hobbyBoard is true
//   - hobbyBoard: Whether to consult the specialized-board catalog
//
// Returns:
//   - []Channel: Channels the device exposes, in stable order
//   - error: ErrUnknownFamily when the catalog has no entry
func ChannelsForFamily(family string, hobbyBoard bool) ([]Channel, error) {
	catalog := deviceChannels
	if hobbyBoard {
		catalog = hobbyBoardChannels
	}

	channels, ok := catalog[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	return channels, nil
}

// UnitOf returns the unit metadata for a channel name.
//
// Returns:
//   - ChannelUnit: Category, unit symbol and device class
//   - error: ErrUnknownChannel when the unit catalog has no entry
func UnitOf(channel string) (ChannelUnit, error) {
	unit, ok := channelUnits[channel]
	if !ok {
		return ChannelUnit{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return unit, nil
}

// SupportsSysBus reports whether a family is readable via the kernel
// w1 driver.
func SupportsSysBus(family string) bool {
	return sysbusFamilies[family]
}

// IsHobbyBoardFamily reports whether a family code marks a specialized
// hobby board whose channels depend on the device type string.
func IsHobbyBoardFamily(family string) bool {
	return strings.Contains(family, hobbyBoardMarker)
}
