package bus

import "errors"

// Domain-specific errors for bus operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when a publish is requested while the
	// bridge has no broker connection. There is no outbound persistence:
	// the message is simply not sent.
	ErrNotConnected = errors.New("bus: not connected")

	// ErrQueueFull is returned when the outbound publish queue is full.
	ErrQueueFull = errors.New("bus: publish queue full")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("bus: connection failed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("bus: topic cannot be empty")

	// ErrPayloadTooLarge is returned when a payload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("bus: payload too large")
)
