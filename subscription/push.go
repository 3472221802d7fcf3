package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/sirupsen/logrus"
)

// pushBufferSize bounds the messages queued between the node and the sink.
const pushBufferSize = 64

// PushBackend streams messages from live node subscriptions.
type PushBackend struct {
	node interfaces.Node
}

// NewPushBackend creates a push backend on node.
func NewPushBackend(node interfaces.Node) *PushBackend {
	return &PushBackend{node: node}
}

// IsPolling returns false.
func (b *PushBackend) IsPolling() bool {
	return false
}

// Open subscribes to criteria on the node. The interval is ignored.
func (b *PushBackend) Open(ctx context.Context, criteria interfaces.Criteria, _ time.Duration, sink interfaces.MessageSink) (interfaces.BackendStream, error) {
	ch := make(chan *interfaces.ReceivedMessage, pushBufferSize)
	sub, err := b.node.Subscribe(ctx, criteria, ch)
	if err != nil {
		return nil, err
	}

	s := &pushStream{
		sub:  sub,
		quit: make(chan struct{}),
	}
	go s.loop(ch, sink)

	logrus.WithFields(logrus.Fields{
		"function": "PushBackend.Open",
		"topics":   criteria.Topics,
	}).Debug("Push subscription opened")

	return s, nil
}

type pushStream struct {
	sub       interfaces.Subscription
	quit      chan struct{}
	closeOnce sync.Once
}

func (s *pushStream) loop(ch <-chan *interfaces.ReceivedMessage, sink interfaces.MessageSink) {
	for {
		select {
		case <-s.quit:
			return
		case msg := <-ch:
			select {
			case <-s.quit:
				return
			default:
			}
			sink.Deliver(msg)
		case err, ok := <-s.sub.Err():
			if !ok {
				return
			}
			select {
			case <-s.quit:
				return
			default:
			}
			if err != nil {
				sink.Fail(err)
			}
			return
		}
	}
}

// Close unsubscribes. It does not wait for the delivery loop, so it is safe
// to call from inside a delivery.
func (s *pushStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.sub.Unsubscribe()
	})
	return nil
}
