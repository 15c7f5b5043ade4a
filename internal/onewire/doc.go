// Package onewire implements the 1-Wire sensor bridge.
//
// The bridge discovers temperature, humidity, pressure and similar sensors
// on a 1-Wire bus, polls them on a fixed cycle, and publishes normalized
// readings to MQTT for Gray Logic Core to consume.
//
// Two backends are supported:
//
//   - owserver: the OWFS network daemon, reached over its ownet TCP
//     protocol. This is the only backend that can read specialized
//     hobby boards (family EF).
//   - sysbus: the kernel w1 driver on a Raspberry Pi, read directly
//     from /sys/bus/w1/devices. Temperature-only families.
//
// Discovery classifies each device by its family code against a static
// catalog, expands it into one Sensor per exposed channel, and binds a
// Reader for the backend the device was found on. Moisture meter channels
// are re-queried once at discovery time to decide whether they are leaf
// wetness sensors; the channel identity never changes afterwards.
//
// Polling is fan-out per cycle: every sensor is read concurrently, a
// failed read marks that sensor unavailable for the cycle and never
// interrupts the others.
package onewire
