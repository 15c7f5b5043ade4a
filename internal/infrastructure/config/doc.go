// Package config loads and validates the 1-Wire bridge configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and environment variable overrides applied last. Secrets (MQTT
// password, InfluxDB token) should always come from the environment rather
// than the file.
//
// Loading order:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern ONEWIRE_SECTION_KEY, for example
// ONEWIRE_MQTT_PASSWORD or ONEWIRE_DATABASE_PATH.
package config
