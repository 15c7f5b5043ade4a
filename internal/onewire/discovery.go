package onewire

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Backend discovers the sensors reachable through one bus access method.
type Backend interface {
	// Discover enumerates the bus and returns one Sensor per device
	// channel. names maps device serials to display names.
	Discover(ctx context.Context, names map[string]string) ([]*Sensor, error)

	// Kind identifies the backend in logs and health reports.
	Kind() string
}

// ProxyBackend discovers devices through an owserver connection.
//
// This is the full-featured backend: it handles every catalog family
// including specialized hobby boards, whose identity comes from the
// device type string rather than the family code.
type ProxyBackend struct {
	conn   Owserver
	logger Logger
}

// NewProxyBackend creates an owserver discovery backend.
func NewProxyBackend(conn Owserver, logger Logger) *ProxyBackend {
	return &ProxyBackend{conn: conn, logger: logger}
}

// Kind returns "owserver".
func (b *ProxyBackend) Kind() string { return "owserver" }

// Discover lists the bus root and classifies every device found.
//
// Devices whose family (or board type) has no catalog entry are logged
// and skipped; a single unreadable device never aborts discovery.
func (b *ProxyBackend) Discover(ctx context.Context, names map[string]string) ([]*Sensor, error) {
	devices, err := b.conn.Dir(ctx, "/")
	if err != nil {
		return nil, fmt.Errorf("bus enumeration: %w", err)
	}

	var sensors []*Sensor
	for _, device := range devices {
		family, err := b.readAttr(ctx, device, "family")
		if err != nil {
			b.logWarn("cannot read device family, skipping", "device", device, "error", err)
			continue
		}

		key := family
		hobbyBoard := IsHobbyBoardFamily(family)
		if hobbyBoard {
			// Hobby boards share the EF family code. Their channel set
			// depends on the firmware's type string.
			key, err = b.readAttr(ctx, device, "type")
			if err != nil {
				b.logWarn("cannot read hobby board type, skipping", "device", device, "error", err)
				continue
			}
		}

		channels, err := ChannelsForFamily(key, hobbyBoard)
		if err != nil {
			if errors.Is(err, ErrUnknownFamily) {
				b.logWarn("ignoring unknown device family", "device", device, "family", key)
				continue
			}
			return nil, err
		}

		sensorID := deviceBasename(device)
		for _, ch := range channels {
			channel := ch.Name

			// Moisture meter inputs double as leaf wetness sensors.
			// The board reports which mode each input is wired for;
			// the decision is made once and never revisited.
			if strings.HasPrefix(channel, "moisture_") {
				if leaf := b.isLeaf(ctx, device, channel); leaf {
					channel = "wetness_" + channel[len("moisture_"):]
				}
			}

			sensor, err := NewSensor(SensorConfig{
				Name:       names[sensorID],
				SensorID:   sensorID,
				Channel:    channel,
				DeviceFile: device + ch.Path,
				Model:      key,
				Reader:     newProxyReader(b.conn, device+ch.Path),
			})
			if err != nil {
				b.logWarn("cannot build sensor, skipping", "device", device, "channel", channel, "error", err)
				continue
			}
			sensors = append(sensors, sensor)
		}
	}

	return sensors, nil
}

// isLeaf queries the board's wiring mode for one moisture input.
// Read failures keep the default moisture identity.
func (b *ProxyBackend) isLeaf(ctx context.Context, device, channel string) bool {
	input := channel[len("moisture_"):]
	data, err := b.conn.Read(ctx, device+"moisture/is_leaf."+input)
	if err != nil {
		b.logWarn("cannot read leaf wiring mode", "device", device, "input", input, "error", err)
		return false
	}
	mode, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		b.logWarn("unparseable leaf wiring mode", "device", device, "input", input, "value", string(data))
		return false
	}
	return mode != 0
}

func (b *ProxyBackend) readAttr(ctx context.Context, device, attr string) (string, error) {
	data, err := b.conn.Read(ctx, device+attr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (b *ProxyBackend) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keysAndValues...)
	}
}

// deviceBasename extracts the serial from an owserver device path,
// "/28.0316A279F7FF/" -> "28.0316A279F7FF".
func deviceBasename(device string) string {
	trimmed := strings.TrimSuffix(device, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// SysBusBackend discovers devices through the kernel w1 driver.
//
// Only temperature families are readable this way; anything else on the
// bus is logged and skipped.
type SysBusBackend struct {
	bus    *SysBus
	logger Logger
}

// NewSysBusBackend creates a kernel w1 discovery backend.
func NewSysBusBackend(bus *SysBus, logger Logger) *SysBusBackend {
	return &SysBusBackend{bus: bus, logger: logger}
}

// Kind returns "sysbus".
func (b *SysBusBackend) Kind() string { return "sysbus" }

// Discover enumerates the w1 mount dir.
//
// An empty bus is reported in the logs but is not an error; the kernel
// enumerates devices lazily and a later rediscovery may find them.
func (b *SysBusBackend) Discover(ctx context.Context, names map[string]string) ([]*Sensor, error) {
	devices, err := b.bus.FindAllSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("sysbus enumeration: %w", err)
	}

	if len(devices) == 0 && b.logger != nil {
		b.logger.Info("no sysbus devices found; check that the w1-gpio and w1-therm kernel modules are loaded",
			"mount_dir", b.bus.MountDir())
	}

	var sensors []*Sensor
	for _, device := range devices {
		family := device.Family()
		if !SupportsSysBus(family) {
			if b.logger != nil {
				b.logger.Warn("ignoring unsupported sysbus family", "family", family, "device", device.SensorID())
			}
			continue
		}

		sensor, err := NewSensor(SensorConfig{
			Name:       names[device.SensorID()],
			SensorID:   device.SensorID(),
			Channel:    "temperature",
			DeviceFile: device.SlaveFile(),
			Model:      family,
			Reader:     newDirectReader(device),
		})
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, sensor)
	}

	return sensors, nil
}
