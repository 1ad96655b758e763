package mqtt

import "errors"

// ErrNotConnected is returned when a command is published while the broker
// connection is down. The caller keeps its state so the command is retried
// once the connection recovers.
var ErrNotConnected = errors.New("mqtt client not connected")

// ErrPublishTimeout is returned when the broker does not confirm a publish
// before the configured timeout.
var ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")
