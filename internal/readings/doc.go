// Package readings persists normalized sensor readings to SQLite.
//
// One row is written per sensor per poll cycle. A NULL state marks a cycle
// where the sensor was present but could not be read; the raw value is kept
// whenever the device produced one.
//
// The store backs the HTTP API's history endpoints. It is optional: when
// the database is disabled in config the bridge serves live state only.
package readings
