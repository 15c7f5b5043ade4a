package onewire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// defaultMountDir is where the kernel w1 driver exposes enumerated devices.
const defaultMountDir = "/sys/bus/w1/devices"

// deviceDirPattern matches kernel w1 device directories, e.g.
// "28-0316a279f7ff". The bus master ("w1_bus_master1") does not match.
var deviceDirPattern = regexp.MustCompile(`^[0-9a-f]{2}-[0-9a-f]+$`)

// SysBus reads 1-Wire devices through the kernel w1 driver.
//
// The driver exposes each device as a directory under the mount dir,
// named "<family>-<serial>" in lower case. Temperature devices carry a
// w1_slave file with the raw conversion result.
type SysBus struct {
	mountDir string
}

// NewSysBus creates a sysbus reader rooted at mountDir.
// An empty mountDir selects the standard kernel path.
func NewSysBus(mountDir string) *SysBus {
	if mountDir == "" {
		mountDir = defaultMountDir
	}
	return &SysBus{mountDir: mountDir}
}

// MountDir returns the directory devices are enumerated from.
func (s *SysBus) MountDir() string {
	return s.mountDir
}

// FindAllSensors enumerates the devices the kernel driver has detected.
//
// Returns:
//   - []*SysBusDevice: One entry per device directory, any family
//   - error: If the mount dir cannot be read
func (s *SysBus) FindAllSensors(ctx context.Context) ([]*SysBusDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.mountDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.mountDir, err)
	}

	var devices []*SysBusDevice
	for _, entry := range entries {
		if !deviceDirPattern.MatchString(entry.Name()) {
			continue
		}
		devices = append(devices, &SysBusDevice{
			mountDir: s.mountDir,
			mac:      strings.Replace(entry.Name(), "-", "", 1),
		})
	}
	return devices, nil
}

// SysBusDevice is one device under the kernel w1 mount dir.
type SysBusDevice struct {
	mountDir string

	// mac is the device identifier with the family/serial dash removed,
	// e.g. "280316a279f7ff".
	mac string
}

// MacAddress returns the dash-less device identifier.
func (d *SysBusDevice) MacAddress() string {
	return d.mac
}

// Family returns the two-character family code, upper case to match the
// device catalog.
func (d *SysBusDevice) Family() string {
	return strings.ToUpper(d.mac[:2])
}

// SensorID returns the kernel-style identifier, "<family>-<serial>".
// The family keeps the kernel's lower-case form for path building.
func (d *SysBusDevice) SensorID() string {
	return d.mac[:2] + "-" + d.mac[2:]
}

// SlaveFile returns the path of the device's w1_slave file.
func (d *SysBusDevice) SlaveFile() string {
	return filepath.Join(d.mountDir, d.SensorID(), "w1_slave")
}

// Temperature reads and parses the device's current temperature.
//
// The w1_slave file holds two lines. The first ends in YES or NO for the
// CRC check, the second carries "t=<millidegrees>".
//
// Returns:
//   - float64: Temperature in degrees Celsius
//   - error: ErrSensorUnavailable if the file is missing,
//     ErrDataIntegrity on CRC failure or a malformed file
func (d *SysBusDevice) Temperature() (float64, error) {
	data, err := os.ReadFile(d.SlaveFile())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrSensorUnavailable, d.SensorID())
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrSensorUnavailable, d.SensorID(), err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: %s: short w1_slave output", ErrDataIntegrity, d.SensorID())
	}

	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, fmt.Errorf("%w: %s: crc check failed", ErrDataIntegrity, d.SensorID())
	}

	idx := strings.LastIndex(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s: no temperature field", ErrDataIntegrity, d.SensorID())
	}

	milli, err := strconv.ParseInt(strings.TrimSpace(lines[1][idx+2:]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrDataIntegrity, d.SensorID(), err)
	}

	return float64(milli) / 1000.0, nil
}
