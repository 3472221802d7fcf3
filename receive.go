package whisperchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/registry"
	"github.com/opd-ai/whisperchat/subscription"
	"github.com/sirupsen/logrus"
)

// Message is a received chat message.
type Message struct {
	// Username is derived from the sender's public key.
	Username string
	Sender   string
	// Channel is the channel name, or "" for a direct message.
	Channel string

	Content     string
	ContentType envelope.ContentType
	MessageType envelope.MessageType
	ClockValue  int64
	Timestamp   int64

	// Payload is the decoded JSON text of the envelope.
	Payload string
	Raw     *interfaces.ReceivedMessage
}

// IsDirect reports whether the message was sent to the client's key.
func (m *Message) IsDirect() bool {
	return m.Channel == ""
}

// ChatRequest is a contact's profile announcement.
type ChatRequest struct {
	Username    string
	Sender      string
	DisplayName string
	ProfilePic  string
	ClockValue  int64
}

// MessageCallback receives messages or stream errors, error first.
type MessageCallback func(err error, msg *Message)

// ChatRequestCallback receives chat requests, error first.
type ChatRequestCallback func(err error, req *ChatRequest)

// OnChatRequest sets the callback for chat requests. A nil callback only
// records profiles.
func (c *Client) OnChatRequest(callback ChatRequestCallback) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.chatRequestCallback = callback
}

// OnMessage subscribes to a channel, or to direct messages when channel is
// empty.
func (c *Client) OnMessage(ctx context.Context, channel string, callback MessageCallback) error {
	if channel == "" {
		return c.OnUserMessage(ctx, callback)
	}
	return c.OnChannelMessage(ctx, channel, callback)
}

// OnChannelMessage subscribes callback to a joined channel, replacing any
// earlier subscription for it. Errors are also reported to callback.
func (c *Client) OnChannelMessage(ctx context.Context, name string, callback MessageCallback) error {
	if callback == nil {
		return errors.New("message callback is required")
	}
	s, err := c.active()
	if err != nil {
		callback(err, nil)
		return err
	}

	ch, ok := s.registry.Channel(name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		callback(err, nil)
		return err
	}

	criteria := interfaces.Criteria{
		AllowP2P: true,
		SymKeyID: ch.SymKeyID,
		Topics:   []string{ch.Topic},
	}
	handler := func(d *subscription.Delivery) error {
		return c.handleChannelDelivery(s, name, d, callback)
	}
	onError := func(err error) {
		callback(err, nil)
	}

	h, err := s.engine.Subscribe(ctx, criteria, subscription.StreamChannel, handler, onError)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		callback(err, nil)
		return err
	}

	s.subsMu.Lock()
	old := s.channelSubs[name]
	s.channelSubs[name] = h
	s.subsMu.Unlock()
	if old != nil {
		_ = old.Unsubscribe()
	}

	logrus.WithFields(logrus.Fields{
		"function": "OnChannelMessage",
		"channel":  name,
		"topic":    ch.Topic,
	}).Debug("Subscribed to channel")
	return nil
}

// OnUserMessage subscribes callback to direct messages for the client
// identity, replacing any earlier subscription. Unknown senders are added as
// contacts. Chat requests go to the OnChatRequest callback.
func (c *Client) OnUserMessage(ctx context.Context, callback MessageCallback) error {
	if callback == nil {
		return errors.New("message callback is required")
	}
	s, err := c.active()
	if err != nil {
		callback(err, nil)
		return err
	}

	criteria := interfaces.Criteria{
		AllowP2P:     true,
		MinPow:       c.options.PowTarget,
		PrivateKeyID: s.keyID,
		Topics:       []string{envelope.ContactDiscoveryTopic},
	}
	handler := func(d *subscription.Delivery) error {
		return c.handleUserDelivery(s, d, callback)
	}
	onError := func(err error) {
		callback(err, nil)
	}

	h, err := s.engine.Subscribe(ctx, criteria, subscription.StreamUser, handler, onError)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		callback(err, nil)
		return err
	}

	s.subsMu.Lock()
	old := s.userSub
	s.userSub = h
	s.subsMu.Unlock()
	if old != nil {
		_ = old.Unsubscribe()
	}
	return nil
}

func (c *Client) handleChannelDelivery(s *session, name string, d *subscription.Delivery, callback MessageCallback) error {
	if _, err := s.registry.ObserveChannelClock(name, d.Payload.ClockValue); err != nil {
		if errors.Is(err, registry.ErrChannelNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		}
		return err
	}

	if d.Payload.Tag == envelope.TagChatRequest {
		return c.handleChatRequest(s, d)
	}

	user := ""
	if contact, ok := s.registry.Contact(d.Sender); ok {
		user = contact.Username
	} else if d.Sender != "" {
		user = s.registry.Username(d.Sender)
	}

	callback(nil, newMessage(d, name, user))
	return nil
}

func (c *Client) handleUserDelivery(s *session, d *subscription.Delivery, callback MessageCallback) error {
	if d.Sender == "" {
		return fmt.Errorf("%w: unsigned direct message %s", ErrUnknownContact, d.Raw.Hash)
	}

	contact, created := s.registry.EnsureContact(d.Sender)
	if created {
		logrus.WithFields(logrus.Fields{
			"function": "handleUserDelivery",
			"username": contact.Username,
		}).Debug("Added contact from inbound message")
	}
	if _, err := s.registry.ObserveContactClock(d.Sender, d.Payload.ClockValue); err != nil {
		if errors.Is(err, registry.ErrContactNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownContact, registry.ContactKey(d.Sender))
		}
		return err
	}

	if d.Payload.Tag == envelope.TagChatRequest {
		return c.handleChatRequest(s, d)
	}

	callback(nil, newMessage(d, "", contact.Username))
	return nil
}

func (c *Client) handleChatRequest(s *session, d *subscription.Delivery) error {
	if d.Sender == "" {
		return fmt.Errorf("%w: unsigned chat request %s", ErrUnknownContact, d.Raw.Hash)
	}
	s.registry.EnsureContact(d.Sender)
	contact, err := s.registry.SetContactProfile(d.Sender, d.Payload.DisplayName, d.Payload.ProfilePic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownContact, err)
	}

	c.callbackMu.RLock()
	callback := c.chatRequestCallback
	c.callbackMu.RUnlock()

	if callback != nil {
		callback(nil, &ChatRequest{
			Username:    contact.Username,
			Sender:      contact.PublicKey,
			DisplayName: contact.DisplayName,
			ProfilePic:  contact.ProfilePic,
			ClockValue:  d.Payload.ClockValue,
		})
	}
	return nil
}

func newMessage(d *subscription.Delivery, channel, user string) *Message {
	return &Message{
		Username:    user,
		Sender:      d.Sender,
		Channel:     channel,
		Content:     d.Payload.Content,
		ContentType: d.Payload.ContentType,
		MessageType: d.Payload.MessageType,
		ClockValue:  d.Payload.ClockValue,
		Timestamp:   d.Payload.Timestamp,
		Payload:     string(d.Data),
		Raw:         d.Raw,
	}
}
