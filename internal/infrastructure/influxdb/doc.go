// Package influxdb provides time-series storage for sensor telemetry.
//
// It wraps the official influxdb-client-go v2 library with the bridge's
// patterns for connection management, reading writes, and health monitoring.
//
// # Purpose
//
// The bridge pushes every successful poll to InfluxDB:
//   - Normalized sensor readings (rounded state values)
//   - Raw device values at full precision
//   - Poll-cycle statistics for bus health tracking
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "graylogic",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("28-0316a279f7ff-temperature", "temperature", 21.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
