package whisperchat

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/whisperchat/mailserver"
)

// RequestOptions bounds a history request. See mailserver.RequestOptions.
type RequestOptions = mailserver.RequestOptions

// UseMailserver admits enode as a trusted peer for history requests.
func (c *Client) UseMailserver(ctx context.Context, enode string) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	return mailserverError(s.mailservers.UseMailserver(ctx, enode))
}

// Mailserver returns the enode set by UseMailserver, or "" if none.
func (c *Client) Mailserver() string {
	s, err := c.active()
	if err != nil {
		return ""
	}
	return s.mailservers.Mailserver()
}

// RequestUserMessages asks the mailserver to replay direct messages.
// Replayed envelopes arrive through the user stream.
func (c *Client) RequestUserMessages(ctx context.Context, opts RequestOptions) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	return mailserverError(s.mailservers.RequestUserMessages(ctx, opts))
}

// RequestChannelMessages asks the mailserver to replay a channel. topicOrName
// is either a 0x topic or a channel name, which is hashed to its topic.
func (c *Client) RequestChannelMessages(ctx context.Context, topicOrName string, opts RequestOptions) error {
	s, err := c.active()
	if err != nil {
		return err
	}
	return mailserverError(s.mailservers.RequestChannelMessages(ctx, topicOrName, opts))
}

// mailserverError keeps ErrMailserverNotConfigured distinct and reports every
// other failure as a transport error.
func mailserverError(err error) error {
	if err == nil || errors.Is(err, mailserver.ErrNotConfigured) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
