package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/sirupsen/logrus"
)

// filterTeardownTimeout bounds the shh_deleteMessageFilter call made on Close.
const filterTeardownTimeout = 5 * time.Second

// PollBackend streams messages by polling node filters on an interval.
type PollBackend struct {
	node interfaces.Node
}

// NewPollBackend creates a poll backend on node.
func NewPollBackend(node interfaces.Node) *PollBackend {
	return &PollBackend{node: node}
}

// IsPolling returns true.
func (b *PollBackend) IsPolling() bool {
	return true
}

// Open installs a filter for criteria and starts polling it every interval.
func (b *PollBackend) Open(ctx context.Context, criteria interfaces.Criteria, interval time.Duration, sink interfaces.MessageSink) (interfaces.BackendStream, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", interval)
	}

	filterID, err := b.node.NewMessageFilter(ctx, criteria)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &pollStream{
		node:     b.node,
		filterID: filterID,
		ctx:      pollCtx,
		cancel:   cancel,
	}
	go s.loop(interval, sink)

	logrus.WithFields(logrus.Fields{
		"function":  "PollBackend.Open",
		"filter_id": filterID,
		"topics":    criteria.Topics,
		"interval":  interval,
	}).Debug("Poll filter installed")

	return s, nil
}

type pollStream struct {
	node     interfaces.Node
	filterID string
	ctx      context.Context
	cancel   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (s *pollStream) loop(interval time.Duration, sink interfaces.MessageSink) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		msgs, err := s.node.GetFilterMessages(s.ctx, s.filterID)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "pollStream.loop",
				"filter_id": s.filterID,
				"error":     err.Error(),
			}).Warn("Polling filter failed")
			sink.Fail(err)
			continue
		}

		for _, msg := range msgs {
			if s.ctx.Err() != nil {
				return
			}
			sink.Deliver(msg)
		}
	}
}

// Close stops the poll timer and deletes the filter. It does not wait for an
// in-flight delivery, so it is safe to call from inside one.
func (s *pollStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), filterTeardownTimeout)
		defer cancel()

		ok, err := s.node.DeleteMessageFilter(ctx, s.filterID)
		switch {
		case err != nil:
			s.closeErr = fmt.Errorf("failed to delete filter %s: %w", s.filterID, err)
		case !ok:
			s.closeErr = errors.New("node did not delete filter " + s.filterID)
		}
		if s.closeErr != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "pollStream.Close",
				"filter_id": s.filterID,
				"error":     s.closeErr.Error(),
			}).Warn("Filter teardown failed")
		}
	})
	return s.closeErr
}
