package whisperchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/limits"
	"github.com/opd-ai/whisperchat/registry"
	"github.com/sirupsen/logrus"
)

// JoinChat derives the channel key from its name and registers the channel
// with a zero clock. Re-joining resets the clock; an existing subscription
// stays active.
func (c *Client) JoinChat(ctx context.Context, name string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if err := limits.ValidateChannelName(name); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownChannel, err)
	}

	symKeyID, err := s.node.GenerateSymKeyFromPassword(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	s.registry.JoinChannel(name, symKeyID, envelope.TopicFromName(name))
	return nil
}

// LeaveChat stops the channel's subscription and forgets the channel.
func (c *Client) LeaveChat(name string) error {
	s, err := c.active()
	if err != nil {
		return err
	}

	if err := s.registry.LeaveChannel(name); err != nil {
		if errors.Is(err, registry.ErrChannelNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
		}
		return err
	}

	s.subsMu.Lock()
	h := s.channelSubs[name]
	delete(s.channelSubs, name)
	s.subsMu.Unlock()

	if h == nil {
		return nil
	}
	if err := h.Unsubscribe(); err != nil && !errors.Is(err, ErrAlreadyClosed) {
		logrus.WithFields(logrus.Fields{
			"function": "LeaveChat",
			"channel":  name,
			"error":    err.Error(),
		}).Warn("Channel subscription teardown failed")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// IsSubscribedTo reports whether the channel is joined.
func (c *Client) IsSubscribedTo(name string) bool {
	s, err := c.active()
	if err != nil {
		return false
	}
	return s.registry.HasChannel(name)
}

// AddContact registers a contact with a derived username and a zero clock.
// Adding a known contact resets it.
func (c *Client) AddContact(publicKey string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if err := validatePublicKey(publicKey); err != nil {
		return err
	}
	s.registry.AddContact(publicKey)
	return nil
}

// RemoveContact forgets a contact.
func (c *Client) RemoveContact(publicKey string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	if err := s.registry.RemoveContact(publicKey); err != nil {
		if errors.Is(err, registry.ErrContactNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownContact, registry.ContactKey(publicKey))
		}
		return err
	}
	return nil
}
