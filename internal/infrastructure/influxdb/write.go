package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records a single normalized sensor reading.
//
// This is the primary method for sensor telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - sensorID: Sensor entity identifier (e.g., "28-0316a279f7ff-temperature")
//   - channel: The sensed quantity (e.g., "temperature", "humidity", "moisture_0")
//   - value: The normalized reading value
//
// Example:
//
//	client.WriteSensorReading("28-0316a279f7ff-temperature", "temperature", 21.5)
func (c *Client) WriteSensorReading(sensorID string, channel string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"sensor_id": sensorID,
			"channel":   channel,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRawReading records the unrounded value alongside the normalized one.
//
// Raw values keep full device precision for later analysis, while
// sensor_readings carries the rounded state the rest of the system sees.
//
// Parameters:
//   - sensorID: Sensor entity identifier
//   - channel: The sensed quantity
//   - raw: The unrounded device value
func (c *Client) WriteRawReading(sensorID string, channel string, raw float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings_raw",
		map[string]string{
			"sensor_id": sensorID,
			"channel":   channel,
		},
		map[string]interface{}{
			"value": raw,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCycleStats records poll-cycle statistics for the bridge.
//
// Used for tracking bus health over time: how many sensors responded,
// how many failed, and how long the cycle took.
//
// Parameters:
//   - bridgeID: Bridge instance identifier
//   - polled: Number of sensors polled this cycle
//   - failed: Number of sensors that failed to read
//   - duration: Wall-clock time the cycle took
func (c *Client) WriteCycleStats(bridgeID string, polled, failed int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_cycles",
		map[string]string{
			"bridge_id": bridgeID,
		},
		map[string]interface{}{
			"polled":      polled,
			"failed":      failed,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
