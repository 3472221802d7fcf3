package interfaces

import (
	"context"
	"time"
)

// MessageSink receives the output of a backend stream. Calls for one stream
// are never concurrent.
type MessageSink interface {
	// Deliver hands over one raw message.
	Deliver(msg *ReceivedMessage)

	// Fail reports a stream level failure, such as a failed poll.
	Fail(err error)
}

// BackendStream is an open message stream.
type BackendStream interface {
	// Close stops the stream. It may be called from inside Deliver.
	Close() error
}

// SubscriptionBackend opens message streams on a node.
type SubscriptionBackend interface {
	// Open starts delivering messages matching criteria to sink. The interval
	// is only used by polling backends.
	Open(ctx context.Context, criteria Criteria, interval time.Duration, sink MessageSink) (BackendStream, error)

	// IsPolling returns true if this backend polls a filter.
	IsPolling() bool
}

// BackendConfig holds configuration for subscription backends.
type BackendConfig struct {
	// ForcePolling selects the poll backend even when the node can push.
	ForcePolling bool

	// ChannelPollInterval is the poll interval for channel streams.
	ChannelPollInterval time.Duration

	// UserPollInterval is the poll interval for the direct message stream.
	UserPollInterval time.Duration
}
