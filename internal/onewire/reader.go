package onewire

import (
	"context"
	"strconv"
	"strings"
)

// Reader returns the raw textual value of one sensor channel.
// Implementations are backend-specific; normalization happens in Sensor.
type Reader interface {
	// Read fetches the current raw value. The result keeps owserver's
	// textual form, typically a decimal number.
	Read(ctx context.Context) (string, error)

	// Locator identifies what the reader reads, for logging and the
	// device_file attribute.
	Locator() string
}

// proxyReader reads one owserver attribute path.
type proxyReader struct {
	conn Owserver
	path string
}

func newProxyReader(conn Owserver, path string) *proxyReader {
	return &proxyReader{conn: conn, path: path}
}

func (r *proxyReader) Read(ctx context.Context) (string, error) {
	data, err := r.conn.Read(ctx, r.path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *proxyReader) Locator() string {
	return r.path
}

// directReader reads one kernel w1 temperature device.
type directReader struct {
	device *SysBusDevice
}

func newDirectReader(device *SysBusDevice) *directReader {
	return &directReader{device: device}
}

func (r *directReader) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := r.device.Temperature()
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

func (r *directReader) Locator() string {
	return r.device.SlaveFile()
}
