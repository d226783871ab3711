package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrInvalidPayload is returned when an inbound message cannot be decoded.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrInvalidTopic is returned when an inbound topic carries no entity id
	// or event type.
	ErrInvalidTopic = errors.New("bridge: invalid topic")
)
