package onewire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeSlaveFile creates a fake kernel w1 device directory.
func writeSlaveFile(t *testing.T, mountDir, deviceID, content string) {
	t.Helper()

	dir := filepath.Join(mountDir, deviceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "w1_slave"), []byte(content), 0o644); err != nil {
		t.Fatalf("write w1_slave: %v", err)
	}
}

const goodSlaveOutput = "53 01 4b 46 7f ff 0c 10 2d : crc=2d YES\n" +
	"53 01 4b 46 7f ff 0c 10 2d t=21187\n"

const badCRCSlaveOutput = "53 01 4b 46 7f ff 0c 10 2d : crc=2d NO\n" +
	"53 01 4b 46 7f ff 0c 10 2d t=21187\n"

func TestSysBusFindAllSensors(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "28-0316a279f7ff", goodSlaveOutput)
	writeSlaveFile(t, mountDir, "10-abcd00000000", goodSlaveOutput)

	// Bus master and stray files must be ignored.
	if err := os.MkdirAll(filepath.Join(mountDir, "w1_bus_master1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	bus := NewSysBus(mountDir)
	devices, err := bus.FindAllSensors(context.Background())
	if err != nil {
		t.Fatalf("FindAllSensors: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
}

func TestSysBusDeviceIdentity(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "28-0316a279f7ff", goodSlaveOutput)

	bus := NewSysBus(mountDir)
	devices, err := bus.FindAllSensors(context.Background())
	if err != nil {
		t.Fatalf("FindAllSensors: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}

	d := devices[0]
	if got := d.MacAddress(); got != "280316a279f7ff" {
		t.Errorf("MacAddress = %q", got)
	}
	if got := d.Family(); got != "28" {
		t.Errorf("Family = %q", got)
	}
	if got := d.SensorID(); got != "28-0316a279f7ff" {
		t.Errorf("SensorID = %q", got)
	}
}

func TestSysBusFamilyUppercased(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "3b-1234567890ab", goodSlaveOutput)

	bus := NewSysBus(mountDir)
	devices, err := bus.FindAllSensors(context.Background())
	if err != nil {
		t.Fatalf("FindAllSensors: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}

	// Kernel paths are lower case but the catalog key is "3B".
	if got := devices[0].Family(); got != "3B" {
		t.Errorf("Family = %q, want 3B", got)
	}
	if !SupportsSysBus(devices[0].Family()) {
		t.Error("DS1825 family should be sysbus-capable")
	}
}

func TestSysBusTemperature(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "28-0316a279f7ff", goodSlaveOutput)

	d := &SysBusDevice{mountDir: mountDir, mac: "280316a279f7ff"}
	v, err := d.Temperature()
	if err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	if v != 21.187 {
		t.Errorf("Temperature = %v, want 21.187", v)
	}
}

func TestSysBusTemperatureErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
		wantErr error
	}{
		{"missing device file", "", true, ErrSensorUnavailable},
		{"crc failure", badCRCSlaveOutput, false, ErrDataIntegrity},
		{"truncated output", "one line only\n", false, ErrDataIntegrity},
		{"no temperature field", "aa bb : crc=2d YES\naa bb cc\n", false, ErrDataIntegrity},
		{"garbage millidegrees", "aa bb : crc=2d YES\naa bb t=hot\n", false, ErrDataIntegrity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mountDir := t.TempDir()
			if !tt.missing {
				writeSlaveFile(t, mountDir, "28-0316a279f7ff", tt.content)
			}

			d := &SysBusDevice{mountDir: mountDir, mac: "280316a279f7ff"}
			_, err := d.Temperature()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSysBusBackendDiscover(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "28-0316a279f7ff", goodSlaveOutput)

	// DS2438 is not readable through the kernel driver.
	writeSlaveFile(t, mountDir, "26-1234567890ab", goodSlaveOutput)

	backend := NewSysBusBackend(NewSysBus(mountDir), discardLogger{})
	sensors, err := backend.Discover(context.Background(), map[string]string{
		"28-0316a279f7ff": "Attic",
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sensors) != 1 {
		t.Fatalf("got %d sensors, want 1", len(sensors))
	}

	s := sensors[0]
	if s.Name() != "Attic temperature" {
		t.Errorf("Name = %q", s.Name())
	}
	if s.EntityID() != "28-0316a279f7ff-temperature" {
		t.Errorf("EntityID = %q", s.EntityID())
	}
	if s.DeviceFile() != filepath.Join(mountDir, "28-0316a279f7ff", "w1_slave") {
		t.Errorf("DeviceFile = %q", s.DeviceFile())
	}
}

func TestSysBusBackendEmptyBus(t *testing.T) {
	backend := NewSysBusBackend(NewSysBus(t.TempDir()), discardLogger{})

	sensors, err := backend.Discover(context.Background(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sensors) != 0 {
		t.Errorf("got %d sensors, want 0", len(sensors))
	}
}

func TestSysBusBackendPollEndToEnd(t *testing.T) {
	mountDir := t.TempDir()
	writeSlaveFile(t, mountDir, "28-0316a279f7ff", goodSlaveOutput)

	backend := NewSysBusBackend(NewSysBus(mountDir), discardLogger{})
	sensors, err := backend.Discover(context.Background(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(sensors) != 1 {
		t.Fatalf("got %d sensors, want 1", len(sensors))
	}

	s := sensors[0]
	if err := s.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := s.State(); got != 21.2 {
		t.Errorf("State = %v, want 21.2", got)
	}
	if raw := s.RawValue(); raw == nil || *raw != 21.187 {
		t.Errorf("RawValue = %v, want 21.187", raw)
	}
}
