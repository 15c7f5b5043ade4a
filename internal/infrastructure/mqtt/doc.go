// Package mqtt provides the MQTT client for the 1-Wire bridge.
//
// It wraps paho.mqtt.golang with connection management, Last Will and
// Testament for offline detection, automatic reconnection with subscription
// restoration, and validated publish/subscribe operations.
//
// The bridge publishes on the Gray Logic flat topic scheme:
//
//	graylogic/state/onewire/{sensor_id}    - retained sensor state
//	graylogic/health/onewire               - periodic bridge health
//	graylogic/discovery/onewire            - retained sensor inventory
//	graylogic/command/onewire              - inbound refresh/rescan commands
//	graylogic/system/onewire-bridge/status - online/offline (LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.State("28-0316a279f7ff-temperature")
//	err = client.Publish(topic, payload, 1, true)
//
// Thread Safety: all methods are safe for concurrent use.
package mqtt
