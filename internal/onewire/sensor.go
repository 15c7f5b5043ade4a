package onewire

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// SensorConfig holds the immutable identity of a sensor.
type SensorConfig struct {
	// Name is the display name, e.g. "Boiler Flow temperature".
	Name string

	// SensorID is the device serial, e.g. "28.0316A279F7FF" for
	// owserver devices or "28-0316a279f7ff" for sysbus devices.
	SensorID string

	// Channel is the catalog channel name, e.g. "temperature".
	Channel string

	// DeviceFile is the full locator of the raw value, an owserver
	// attribute path or a sysfs file path.
	DeviceFile string

	// Model is the device family or board type string.
	Model string

	// Reader fetches the raw value from the backend.
	Reader Reader
}

// Sensor is one measurable channel of a discovered device.
//
// Identity is fixed at discovery. Poll updates the cached reading;
// accessors return the last good value until the next cycle.
//
// Thread Safety: all methods are safe for concurrent use.
type Sensor struct {
	name       string
	sensorID   string
	channel    string
	deviceFile string
	model      string
	unit       ChannelUnit
	reader     Reader

	mu        sync.RWMutex
	available bool
	state     float64
	raw       float64
	hasRaw    bool
}

// NewSensor creates a sensor from its discovered identity.
//
// Returns:
//   - *Sensor: Ready to poll
//   - error: If required fields are missing or the channel has no unit
//     catalog entry
func NewSensor(cfg SensorConfig) (*Sensor, error) {
	if cfg.SensorID == "" {
		return nil, fmt.Errorf("%w: sensor ID is required", ErrUnknownChannel)
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("onewire: sensor %s has no reader", cfg.SensorID)
	}

	unit, err := UnitOf(cfg.Channel)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = cfg.SensorID
	}

	return &Sensor{
		name:       fmt.Sprintf("%s %s", name, unit.Category),
		sensorID:   cfg.SensorID,
		channel:    cfg.Channel,
		deviceFile: cfg.DeviceFile,
		model:      cfg.Model,
		unit:       unit,
		reader:     cfg.Reader,
	}, nil
}

// Poll reads the backend and updates the cached state.
//
// A failed read marks the sensor unavailable for this cycle. The error
// is returned for logging; callers keep polling other sensors.
func (s *Sensor) Poll(ctx context.Context) error {
	text, err := s.reader.Read(ctx)
	if err != nil {
		s.markUnavailable()
		return err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		s.markUnavailable()
		return fmt.Errorf("%w: %s: unparseable value %q", ErrDataIntegrity, s.deviceFile, text)
	}

	s.mu.Lock()
	s.available = true
	s.raw = value
	s.hasRaw = true
	s.state = math.Round(value*10) / 10
	s.mu.Unlock()
	return nil
}

func (s *Sensor) markUnavailable() {
	s.mu.Lock()
	s.available = false
	s.mu.Unlock()
}

// State returns the normalized reading for publication.
//
// Counter channels report whole events, so their state is an integer.
// Everything else is rounded to one decimal place. Returns nil while
// the sensor is unavailable.
func (s *Sensor) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return nil
	}
	if s.unit.Unit == UnitCount {
		return int64(s.state)
	}
	return s.state
}

// Values returns the rounded state and unrounded raw value for
// persistence. Both are nil while the sensor is unavailable.
func (s *Sensor) Values() (state, raw *float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.available {
		return nil, nil
	}
	st := s.state
	state = &st
	if s.hasRaw {
		rw := s.raw
		raw = &rw
	}
	return state, raw
}

// Available reports whether the last poll succeeded.
func (s *Sensor) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available
}

// RawValue returns the last unrounded reading, nil while unavailable.
func (s *Sensor) RawValue() *float64 {
	_, raw := s.Values()
	return raw
}

// Attributes returns the extra state attributes published with a reading.
func (s *Sensor) Attributes() map[string]any {
	return map[string]any{
		"device_file": s.deviceFile,
		"raw_value":   s.RawValue(),
	}
}

// Name returns the display name.
func (s *Sensor) Name() string { return s.name }

// SensorID returns the device serial.
func (s *Sensor) SensorID() string { return s.sensorID }

// Channel returns the catalog channel name.
func (s *Sensor) Channel() string { return s.channel }

// DeviceFile returns the raw value locator.
func (s *Sensor) DeviceFile() string { return s.deviceFile }

// Model returns the device family or board type string.
func (s *Sensor) Model() string { return s.model }

// Manufacturer returns the device manufacturer. All catalog families are
// Maxim (formerly Dallas) parts or boards built on them.
func (s *Sensor) Manufacturer() string { return manufacturer }

// Unit returns the unit symbol readings are expressed in.
func (s *Sensor) Unit() string { return s.unit.Unit }

// DeviceClass returns the classification tag, empty for counters.
func (s *Sensor) DeviceClass() string { return s.unit.DeviceClass }

// UniqueID returns the stable identity of this sensor. The device file
// locator is unique per channel and survives renames.
func (s *Sensor) UniqueID() string { return s.deviceFile }

// EntityID returns the MQTT-safe identifier used in state topics,
// e.g. "28-0316a279f7ff-temperature".
func (s *Sensor) EntityID() string {
	id := strings.ToLower(s.sensorID)
	id = strings.ReplaceAll(id, ".", "-")
	return id + "-" + s.channel
}
