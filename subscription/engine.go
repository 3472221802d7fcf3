package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/limits"
	"github.com/sirupsen/logrus"
)

// Stream identifies the kind of message stream a handle follows.
type Stream uint8

const (
	// StreamChannel follows one public channel.
	StreamChannel Stream = iota
	// StreamUser follows direct messages to the client's key.
	StreamUser
)

func (s Stream) String() string {
	switch s {
	case StreamChannel:
		return "channel"
	case StreamUser:
		return "user"
	default:
		return fmt.Sprintf("stream(%d)", uint8(s))
	}
}

const (
	// DefaultChannelPollInterval is the poll interval for channel streams.
	DefaultChannelPollInterval = 2 * time.Second
	// DefaultUserPollInterval is the poll interval for the user stream.
	DefaultUserPollInterval = 250 * time.Millisecond
)

// ErrAlreadyClosed is returned by a second Unsubscribe.
var ErrAlreadyClosed = errors.New("subscription already closed")

// Delivery is one decoded inbound envelope.
type Delivery struct {
	// Sender is the signer's public key as reported by the node.
	Sender  string
	Payload *envelope.Payload
	// Data is the decoded JSON text of the payload.
	Data []byte
	Raw  *interfaces.ReceivedMessage
}

// DeliveryHandler processes one delivery. A returned error is passed to the
// handle's error handler.
type DeliveryHandler func(d *Delivery) error

// ErrorHandler receives per-message and stream failures.
type ErrorHandler func(err error)

// Engine opens subscriptions through a backend and tracks the live handles.
type Engine struct {
	backend interfaces.SubscriptionBackend
	config  interfaces.BackendConfig

	mu      sync.Mutex
	handles map[uint64]*Handle
	nextID  uint64
}

// NewEngine creates an engine. Zero poll intervals take the defaults.
func NewEngine(backend interfaces.SubscriptionBackend, config interfaces.BackendConfig) *Engine {
	if config.ChannelPollInterval <= 0 {
		config.ChannelPollInterval = DefaultChannelPollInterval
	}
	if config.UserPollInterval <= 0 {
		config.UserPollInterval = DefaultUserPollInterval
	}
	return &Engine{
		backend: backend,
		config:  config,
		handles: make(map[uint64]*Handle),
	}
}

// IsPolling reports whether the engine's backend polls.
func (e *Engine) IsPolling() bool {
	return e.backend.IsPolling()
}

// Interval returns the poll interval used for a stream kind.
func (e *Engine) Interval(stream Stream) time.Duration {
	if stream == StreamUser {
		return e.config.UserPollInterval
	}
	return e.config.ChannelPollInterval
}

// Subscribe opens a stream for criteria. onDelivery is called once per
// decodable envelope, never concurrently for the same handle. onError may be
// nil.
func (e *Engine) Subscribe(ctx context.Context, criteria interfaces.Criteria, stream Stream, onDelivery DeliveryHandler, onError ErrorHandler) (*Handle, error) {
	if onDelivery == nil {
		return nil, errors.New("delivery handler is required")
	}

	e.mu.Lock()
	e.nextID++
	h := &Handle{
		id:         e.nextID,
		stream:     stream,
		engine:     e,
		onDelivery: onDelivery,
		onError:    onError,
	}
	e.handles[h.id] = h
	e.mu.Unlock()

	bs, err := e.backend.Open(ctx, criteria, e.Interval(stream), (*handleSink)(h))
	if err != nil {
		h.closed.Store(true)
		e.remove(h.id)
		return nil, err
	}

	h.mu.Lock()
	h.bs = bs
	h.mu.Unlock()

	// Unsubscribe may have run from a delivery before Open returned.
	if h.closed.Load() {
		if err := bs.Close(); err != nil {
			h.reportError(err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Subscribe",
		"stream":   stream.String(),
		"topics":   criteria.Topics,
		"polling":  e.backend.IsPolling(),
	}).Debug("Subscription opened")

	return h, nil
}

// Active returns the number of open handles.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Close unsubscribes every open handle.
func (e *Engine) Close() {
	e.mu.Lock()
	open := make([]*Handle, 0, len(e.handles))
	for _, h := range e.handles {
		open = append(open, h)
	}
	e.mu.Unlock()

	for _, h := range open {
		if err := h.Unsubscribe(); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Close",
				"stream":   h.stream.String(),
				"error":    err.Error(),
			}).Warn("Failed to close subscription")
		}
	}
}

func (e *Engine) remove(id uint64) {
	e.mu.Lock()
	delete(e.handles, id)
	e.mu.Unlock()
}

// Handle is a live subscription.
type Handle struct {
	id         uint64
	stream     Stream
	engine     *Engine
	onDelivery DeliveryHandler
	onError    ErrorHandler

	closed atomic.Bool
	mu     sync.Mutex
	bs     interfaces.BackendStream
}

// Stream returns the kind of stream this handle follows.
func (h *Handle) Stream() Stream {
	return h.stream
}

// Closed reports whether Unsubscribe has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Unsubscribe stops deliveries. It does not wait for an in-flight delivery,
// so it may be called from inside the delivery handler. A second call returns
// ErrAlreadyClosed.
func (h *Handle) Unsubscribe() error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	h.engine.remove(h.id)

	h.mu.Lock()
	bs := h.bs
	h.mu.Unlock()
	if bs == nil {
		return nil
	}
	return bs.Close()
}

func (h *Handle) reportError(err error) {
	if h.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Handle.reportError",
				"panic":    fmt.Sprint(r),
			}).Error("Error handler panicked")
		}
	}()
	h.onError(err)
}

func (h *Handle) deliver(msg *interfaces.ReceivedMessage) {
	if h.closed.Load() || msg == nil {
		return
	}

	if err := limits.ValidateHexPayload(msg.Payload); err != nil {
		h.reportError(fmt.Errorf("%w: %v", envelope.ErrDecode, err))
		return
	}

	data, err := envelope.DecodeHex(msg.Payload)
	var payload *envelope.Payload
	if err == nil {
		payload, err = envelope.Unmarshal(data)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Handle.deliver",
			"stream":   h.stream.String(),
			"hash":     msg.Hash,
			"error":    err.Error(),
		}).Debug("Dropping undecodable envelope")
		h.reportError(err)
		return
	}

	d := &Delivery{Sender: msg.Sig, Payload: payload, Data: data, Raw: msg}
	if err := h.invoke(d); err != nil {
		h.reportError(err)
	}
}

func (h *Handle) invoke(d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery handler panic: %v", r)
		}
	}()
	return h.onDelivery(d)
}

// handleSink adapts a Handle to interfaces.MessageSink without exporting the
// sink methods on Handle.
type handleSink Handle

func (s *handleSink) Deliver(msg *interfaces.ReceivedMessage) {
	(*Handle)(s).deliver(msg)
}

func (s *handleSink) Fail(err error) {
	h := (*Handle)(s)
	if h.closed.Load() {
		return
	}
	h.reportError(err)
}
