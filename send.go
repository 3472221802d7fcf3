package whisperchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/limits"
	"github.com/opd-ai/whisperchat/registry"
	"github.com/sirupsen/logrus"
)

// SendCallback receives the result of an asynchronous send, error first.
type SendCallback func(err error, ok bool)

// SendMessage sends text to a channel or contact. The destination clock is
// incremented before framing. Sending to a contact that is not registered
// adds it.
func (c *Client) SendMessage(ctx context.Context, dest Destination, text string) error {
	return c.send(ctx, dest, text, envelope.ContentTypeText)
}

// SendJSONMessage sends v serialized as JSON content.
func (c *Client) SendJSONMessage(ctx context.Context, dest Destination, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON message: %w", err)
	}
	return c.send(ctx, dest, string(data), envelope.ContentTypeJSON)
}

// SendMessageAsync sends text in the background and reports to callback.
func (c *Client) SendMessageAsync(ctx context.Context, dest Destination, text string, callback SendCallback) {
	go func() {
		err := c.SendMessage(ctx, dest, text)
		if callback != nil {
			callback(err, err == nil)
		}
	}()
}

// SendChatRequest announces a display name and profile picture to a contact.
func (c *Client) SendChatRequest(ctx context.Context, publicKey, displayName, profilePic string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if err := validatePublicKey(publicKey); err != nil {
		return err
	}

	dest := ContactDestination{PublicKey: publicKey}
	lock := s.lockFor(dest)
	lock.Lock()
	defer lock.Unlock()

	s.registry.EnsureContact(publicKey)
	clock, err := s.registry.NextContactClock(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownContact, err)
	}

	return c.post(ctx, s, envelope.NewChatRequest(displayName, profilePic, clock), interfaces.NewMessage{
		PublicKey: registry.ContactKey(publicKey),
		Topic:     envelope.ContactDiscoveryTopic,
	})
}

func (c *Client) send(ctx context.Context, dest Destination, content string, contentType envelope.ContentType) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if dest == nil {
		return errors.New("destination is required")
	}
	if err := limits.ValidateContent(content); err != nil {
		return err
	}

	switch d := dest.(type) {
	case ChannelDestination:
		return c.sendToChannel(ctx, s, d, content, contentType)
	case ContactDestination:
		return c.sendToContact(ctx, s, d, content, contentType)
	default:
		return fmt.Errorf("unsupported destination %T", dest)
	}
}

func (c *Client) sendToChannel(ctx context.Context, s *session, d ChannelDestination, content string, contentType envelope.ContentType) error {
	lock := s.lockFor(d)
	lock.Lock()
	defer lock.Unlock()

	ch, ok := s.registry.Channel(d.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, d.Name)
	}
	clock, err := s.registry.NextChannelClock(d.Name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, d.Name)
	}

	return c.post(ctx, s, envelope.NewMessage(content, contentType, envelope.GroupMessage, clock), interfaces.NewMessage{
		SymKeyID: ch.SymKeyID,
		Topic:    ch.Topic,
	})
}

func (c *Client) sendToContact(ctx context.Context, s *session, d ContactDestination, content string, contentType envelope.ContentType) error {
	if !IsContactCode(d.PublicKey) {
		return fmt.Errorf("%w: %q is not a contact code", ErrUnknownContact, d.PublicKey)
	}

	lock := s.lockFor(d)
	lock.Lock()
	defer lock.Unlock()

	if _, created := s.registry.EnsureContact(d.PublicKey); created {
		logrus.WithFields(logrus.Fields{
			"function": "sendToContact",
			"contact":  d.String(),
		}).Debug("Added contact on first send")
	}
	clock, err := s.registry.NextContactClock(d.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownContact, err)
	}

	return c.post(ctx, s, envelope.NewMessage(content, contentType, envelope.UserMessage, clock), interfaces.NewMessage{
		PublicKey: registry.ContactKey(d.PublicKey),
		Topic:     envelope.ContactDiscoveryTopic,
	})
}

// post frames payload and fills the signing and proof of work fields of msg.
func (c *Client) post(ctx context.Context, s *session, payload *envelope.Payload, msg interfaces.NewMessage) error {
	data, err := c.codec.Marshal(payload)
	if err != nil {
		return err
	}
	if err := limits.ValidatePayload(data); err != nil {
		return err
	}

	msg.Payload = hexutil.Encode(data)
	msg.Sig = s.keyID
	msg.TTL = c.options.TTL
	msg.PowTime = c.options.PowTime
	msg.PowTarget = c.options.PowTarget

	hash, err := s.node.Post(ctx, msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "post",
			"topic":    msg.Topic,
			"tag":      payload.Tag,
			"error":    err.Error(),
		}).Error("Failed to post message")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "post",
		"topic":    msg.Topic,
		"tag":      payload.Tag,
		"clock":    payload.ClockValue,
		"hash":     hash,
	}).Debug("Message posted")
	return nil
}
