package mailserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/sirupsen/logrus"
)

const (
	// SymKeyPassword derives the symmetric key mailservers encrypt replays with.
	SymKeyPassword = "status-offline-inbox"

	// DefaultPeerDelay is the wait between admitting a peer and trusting it.
	DefaultPeerDelay = time.Second

	// DefaultTimeout is the request timeout in seconds.
	DefaultTimeout = 30
)

var (
	// ErrNotConfigured indicates a request before UseMailserver succeeded.
	ErrNotConfigured = errors.New("mailserver is not set")

	// ErrPeerRejected indicates the node refused to add or trust the peer.
	ErrPeerRejected = errors.New("mailserver peer rejected")
)

// Sleeper provides an abstraction over waiting for deterministic testing.
type Sleeper interface {
	// Sleep pauses for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper waits on a timer.
type DefaultSleeper struct{}

// Sleep pauses for d or until ctx is done.
func (DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config configures a Client.
type Config struct {
	// PeerDelay is the wait between admin_addPeer and markTrustedPeer.
	PeerDelay time.Duration

	// Timeout is the default request timeout in seconds.
	Timeout int
}

// RequestOptions bounds a history request. Zero values mean "unbounded" for
// From, To and Limit, and the client default for Timeout.
type RequestOptions struct {
	From    int64
	To      int64
	Limit   int
	Timeout int
}

// Client requests history replay from a trusted mailserver peer.
type Client struct {
	node    interfaces.Node
	config  Config
	sleeper Sleeper

	mu       sync.RWMutex
	enode    string
	symKeyID string
}

// NewClient creates a client. Zero config fields take the defaults.
func NewClient(node interfaces.Node, config Config) *Client {
	if config.PeerDelay <= 0 {
		config.PeerDelay = DefaultPeerDelay
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		node:    node,
		config:  config,
		sleeper: DefaultSleeper{},
	}
}

// SetSleeper sets a custom Sleeper implementation (primarily for testing).
func (c *Client) SetSleeper(s Sleeper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeper = s
}

// UseMailserver admits enode as a peer, waits the peer delay and marks it
// trusted. The previous mailserver stays in use until this succeeds.
func (c *Client) UseMailserver(ctx context.Context, enode string) error {
	if enode == "" {
		return fmt.Errorf("%w: empty enode", ErrPeerRejected)
	}

	symKeyID, err := c.node.GenerateSymKeyFromPassword(ctx, SymKeyPassword)
	if err != nil {
		return fmt.Errorf("failed to derive mailserver key: %w", err)
	}

	ok, err := c.node.AddPeer(ctx, enode)
	if err != nil {
		return fmt.Errorf("failed to add mailserver peer: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerRejected, enode)
	}

	c.mu.RLock()
	sleeper := c.sleeper
	c.mu.RUnlock()
	if err := sleeper.Sleep(ctx, c.config.PeerDelay); err != nil {
		return err
	}

	ok, err = c.node.MarkTrustedPeer(ctx, enode)
	if err != nil {
		return fmt.Errorf("failed to trust mailserver peer: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s not trusted", ErrPeerRejected, enode)
	}

	c.mu.Lock()
	c.enode = enode
	c.symKeyID = symKeyID
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Client.UseMailserver",
		"enode":    enode,
	}).Info("Mailserver configured")

	return nil
}

// Mailserver returns the configured enode, or "".
func (c *Client) Mailserver() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enode
}

// RequestUserMessages replays direct messages and chat requests.
func (c *Client) RequestUserMessages(ctx context.Context, opts RequestOptions) error {
	return c.RequestChannelMessages(ctx, envelope.ContactDiscoveryTopic, opts)
}

// RequestChannelMessages replays a channel. topicOrName is a 0x topic code or
// a channel name to derive one from.
func (c *Client) RequestChannelMessages(ctx context.Context, topicOrName string, opts RequestOptions) error {
	c.mu.RLock()
	enode, symKeyID := c.enode, c.symKeyID
	c.mu.RUnlock()

	if enode == "" {
		return ErrNotConfigured
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	req := interfaces.MessagesRequest{
		MailserverPeer: enode,
		SymKeyID:       symKeyID,
		Topics:         []string{envelope.TopicOf(topicOrName)},
		From:           opts.From,
		To:             opts.To,
		Limit:          opts.Limit,
		Timeout:        timeout,
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.RequestChannelMessages",
		"topic":    req.Topics[0],
		"from":     req.From,
		"to":       req.To,
		"limit":    req.Limit,
	}).Debug("Requesting history from mailserver")

	if err := c.node.RequestMessages(ctx, req); err != nil {
		return fmt.Errorf("mailserver request failed: %w", err)
	}
	return nil
}
