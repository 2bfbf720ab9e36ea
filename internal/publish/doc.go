// Package publish fans crossing events out to an MQTT broker. Each event is
// published as JSON to <prefix>/<room_id>/<kind> with QoS 1.
package publish
