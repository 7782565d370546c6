package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqttwaker/internal/command"
)

// Measurement names.
const (
	measurementCommand    = "mqttwaker_command"
	measurementConnection = "mqttwaker_connection"
)

// WriteCommand writes one point for a dispatched message. The point is
// timestamped with the time the message was received.
func (c *Client) WriteCommand(rec command.Record) {
	if !c.IsConnected() {
		return
	}

	ts := rec.Received
	if ts.IsZero() {
		ts = c.now()
	}

	fields := map[string]interface{}{
		"count": 1,
	}
	if rec.Outcome.Reason != "" {
		fields["reason"] = rec.Outcome.Reason
	}

	c.writer.WritePoint(write.NewPoint(
		measurementCommand,
		map[string]string{
			"client_id": c.clientID,
			"topic":     rec.Topic,
			"command":   rec.Command.String(),
			"outcome":   rec.OutcomeName(),
		},
		fields,
		ts,
	))
}

// RecordCommand implements command.Recorder. Writes are asynchronous, so it
// never returns an error.
func (c *Client) RecordCommand(_ context.Context, rec command.Record) error {
	c.WriteCommand(rec)
	return nil
}

// WriteConnectionState writes one point for a connection state transition.
// The numeric "up" field is 1 only for the connected state so the bucket can
// be graphed as availability.
func (c *Client) WriteConnectionState(state, reason string) {
	if !c.IsConnected() {
		return
	}

	up := 0
	if state == "connected" {
		up = 1
	}
	fields := map[string]interface{}{
		"up": up,
	}
	if reason != "" {
		fields["reason"] = reason
	}

	c.writer.WritePoint(write.NewPoint(
		measurementConnection,
		map[string]string{
			"client_id": c.clientID,
			"state":     state,
		},
		fields,
		c.now(),
	))
}
