package whisperchat

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/factory"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/mailserver"
	"github.com/opd-ai/whisperchat/registry"
	"github.com/opd-ai/whisperchat/subscription"
	"github.com/opd-ai/whisperchat/username"
	"github.com/sirupsen/logrus"
)

// State is the connection state of a Client.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Client is a whisper chat client. It holds one identity per connection.
type Client struct {
	options *Options
	codec   *envelope.Codec

	mu      sync.RWMutex
	state   State
	session *session

	callbackMu          sync.RWMutex
	chatRequestCallback ChatRequestCallback
}

// session is the state of one connection. It is dropped on Disconnect.
type session struct {
	node        interfaces.Node
	ownsNode    bool
	engine      *subscription.Engine
	mailservers *mailserver.Client
	registry    *registry.Registry

	// keyID is the node's handle for the client identity.
	keyID string

	subsMu      sync.Mutex
	channelSubs map[string]*subscription.Handle
	userSub     *subscription.Handle

	sendMu    sync.Mutex
	sendLocks map[string]*sync.Mutex
}

// NewClient creates a disconnected client. Nil options use NewOptions.
func NewClient(options *Options) *Client {
	if options == nil {
		options = NewOptions()
	}
	defaults := NewOptions()
	if options.TimeProvider == nil {
		options.TimeProvider = defaults.TimeProvider
	}
	if options.Dialer == nil {
		options.Dialer = defaults.Dialer
	}

	return &Client{
		options: options,
		codec:   envelope.NewCodec(options.TimeProvider),
		state:   StateDisconnected,
	}
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials url and sets up the client identity. An empty privateKey
// generates a fresh key pair; otherwise the hex key is imported. The client
// owns the dialed node and closes it on Disconnect.
func (c *Client) Connect(ctx context.Context, url, privateKey string) error {
	if err := c.beginConnect(); err != nil {
		return err
	}

	node, err := c.options.Dialer(ctx, url)
	if err != nil {
		c.setState(StateDisconnected)
		logrus.WithFields(logrus.Fields{
			"function": "Connect",
			"error":    err.Error(),
		}).Error("Failed to connect to node")
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if err := c.establish(ctx, node, true, privateKey); err != nil {
		node.Close()
		return err
	}
	return nil
}

// ConnectNode sets up the client identity on an already connected node. The
// caller keeps ownership of node; Disconnect does not close it.
func (c *Client) ConnectNode(ctx context.Context, node interfaces.Node, privateKey string) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrConnection)
	}
	if err := c.beginConnect(); err != nil {
		return err
	}
	return c.establish(ctx, node, false, privateKey)
}

func (c *Client) beginConnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return fmt.Errorf("%w: client is %s", ErrAlreadyConnected, c.state)
	}
	c.state = StateConnecting
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) establish(ctx context.Context, node interfaces.Node, owned bool, privateKey string) error {
	fail := func(step string, err error) error {
		c.setState(StateDisconnected)
		logrus.WithFields(logrus.Fields{
			"function": "Connect",
			"step":     step,
			"error":    err.Error(),
		}).Error("Failed to set up connection")
		return fmt.Errorf("%w: %s: %w", ErrConnection, step, err)
	}

	if err := node.SetMinPoW(ctx, c.options.PowTarget); err != nil {
		return fail("set minimum pow", err)
	}

	var keyID string
	var err error
	if privateKey != "" {
		keyID, err = node.AddPrivateKey(ctx, privateKey)
	} else {
		keyID, err = node.NewKeyPair(ctx)
	}
	if err != nil {
		return fail("set up identity", err)
	}

	engine, err := factory.NewBackendFactoryFromConfig(c.options.backendConfig()).CreateEngine(node)
	if err != nil {
		return fail("create subscription engine", err)
	}

	s := &session{
		node:     node,
		ownsNode: owned,
		engine:   engine,
		mailservers: mailserver.NewClient(node, mailserver.Config{
			PeerDelay: c.options.MailserverPeerDelay,
			Timeout:   c.options.MailserverTimeout,
		}),
		registry:    registry.New(username.FromSeed),
		keyID:       keyID,
		channelSubs: make(map[string]*subscription.Handle),
		sendLocks:   make(map[string]*sync.Mutex),
	}

	c.mu.Lock()
	c.session = s
	c.state = StateConnected
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":      "Connect",
		"push":          !engine.IsPolling(),
		"imported_key":  privateKey != "",
		"owns_node":     owned,
		"poll_interval": engine.Interval(subscription.StreamChannel),
	}).Info("Client connected")

	return nil
}

// active returns the current session or ErrNotConnected.
func (c *Client) active() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected || c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// IsConnected asks the node whether it is listening. A client that is not
// connected reports false without error.
func (c *Client) IsConnected(ctx context.Context) (bool, error) {
	s, err := c.active()
	if err != nil {
		return false, nil
	}
	listening, err := s.node.IsListening(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return listening, nil
}

// GetPublicKey returns the public key of the client identity.
func (c *Client) GetPublicKey(ctx context.Context) (string, error) {
	s, err := c.active()
	if err != nil {
		return "", err
	}
	pub, err := s.node.GetPublicKey(ctx, s.keyID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return pub, nil
}

// GetKeyID returns the node's id for the client identity.
func (c *Client) GetKeyID() (string, error) {
	s, err := c.active()
	if err != nil {
		return "", err
	}
	return s.keyID, nil
}

// GetUserName derives the three word username of pubKey, or of the client
// identity when pubKey is empty. The key is normalized first, so case and the
// 0x prefix do not change the result.
func (c *Client) GetUserName(ctx context.Context, pubKey string) (string, error) {
	if pubKey == "" {
		var err error
		if pubKey, err = c.GetPublicKey(ctx); err != nil {
			return "", err
		}
	}
	return username.FromSeed(registry.ContactKey(pubKey)), nil
}

// Disconnect tears down every subscription and drops the session. Channels
// and contacts do not survive a reconnect.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	s := c.session
	if c.state != StateConnected || s == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.session = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	s.engine.Close()
	s.subsMu.Lock()
	s.channelSubs = make(map[string]*subscription.Handle)
	s.userSub = nil
	s.subsMu.Unlock()

	if s.ownsNode {
		s.node.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
	}).Info("Client disconnected")
	return nil
}

// Channels returns the joined channels sorted by name.
func (c *Client) Channels() []registry.Channel {
	s, err := c.active()
	if err != nil {
		return nil
	}
	return s.registry.Channels()
}

// Contacts returns the known contacts sorted by public key.
func (c *Client) Contacts() []registry.Contact {
	s, err := c.active()
	if err != nil {
		return nil
	}
	return s.registry.Contacts()
}

// Contact returns the contact for publicKey.
func (c *Client) Contact(publicKey string) (registry.Contact, bool) {
	s, err := c.active()
	if err != nil {
		return registry.Contact{}, false
	}
	return s.registry.Contact(publicKey)
}

// Channel returns the joined channel called name.
func (c *Client) Channel(name string) (registry.Channel, bool) {
	s, err := c.active()
	if err != nil {
		return registry.Channel{}, false
	}
	return s.registry.Channel(name)
}

func (s *session) lockFor(dest Destination) *sync.Mutex {
	key := dest.String()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	l, ok := s.sendLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.sendLocks[key] = l
	}
	return l
}
