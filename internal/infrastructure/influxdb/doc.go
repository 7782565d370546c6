// Package influxdb exports mqttwaker activity to InfluxDB v2.
//
// Two measurements are written:
//   - mqttwaker_command: one point per dispatched message, tagged with the
//     resolved command and its outcome
//   - mqttwaker_connection: one point per connection state transition
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.MQTT.ClientID)
//	if err != nil {
//	    // metrics stay off; the daemon carries on
//	}
//	defer client.Close()
//
//	dispatcher.AddRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; async write errors are
// delivered to the SetOnError callback.
package influxdb
