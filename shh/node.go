package shh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultCallTimeout bounds a single RPC call when the caller's context
	// has no deadline.
	DefaultCallTimeout = 30 * time.Second

	// Origin is sent on WebSocket handshakes.
	Origin = "statusjs"

	wsHandshakeTimeout = 45 * time.Second
	wsBufferSize       = 1024
)

// Node implements interfaces.Node over a go-ethereum RPC client.
type Node struct {
	client      *rpc.Client
	push        bool
	callTimeout time.Duration
}

// Dial connects to a node. ws:// and wss:// URLs use a WebSocket with push
// subscriptions, http:// and https:// URLs are poll only, and anything else
// is treated as an IPC socket path.
func Dial(ctx context.Context, rawurl string) (*Node, error) {
	opts, push := transportOptions(rawurl)

	client, err := rpc.DialOptions(ctx, rawurl, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rawurl, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"push":     push,
	}).Info("Connected to shh node")

	return NewNode(client, push), nil
}

func transportOptions(rawurl string) ([]rpc.ClientOption, bool) {
	lower := strings.ToLower(rawurl)
	switch {
	case strings.HasPrefix(lower, "ws://"), strings.HasPrefix(lower, "wss://"):
		dialer := websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: wsHandshakeTimeout,
			ReadBufferSize:   wsBufferSize,
			WriteBufferSize:  wsBufferSize,
		}
		return []rpc.ClientOption{
			rpc.WithWebsocketDialer(dialer),
			rpc.WithHeader("Origin", Origin),
		}, true
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return nil, false
	default:
		return nil, true
	}
}

// NewNode wraps an existing client. push must be false for HTTP clients.
func NewNode(client *rpc.Client, push bool) *Node {
	return &Node{
		client:      client,
		push:        push,
		callTimeout: DefaultCallTimeout,
	}
}

// SetCallTimeout changes the timeout applied to calls without a deadline.
func (n *Node) SetCallTimeout(d time.Duration) {
	n.callTimeout = d
}

func (n *Node) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if _, ok := ctx.Deadline(); !ok && n.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.callTimeout)
		defer cancel()
	}
	if err := n.client.CallContext(ctx, result, method, args...); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Node.call",
			"method":   method,
			"error":    err.Error(),
		}).Debug("RPC call failed")
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// SetMinPoW implements interfaces.Node.
func (n *Node) SetMinPoW(ctx context.Context, pow float64) error {
	var ok bool
	return n.call(ctx, &ok, "shh_setMinPoW", pow)
}

// IsListening implements interfaces.Node.
func (n *Node) IsListening(ctx context.Context) (bool, error) {
	var listening bool
	err := n.call(ctx, &listening, "net_listening")
	return listening, err
}

// NewKeyPair implements interfaces.Node.
func (n *Node) NewKeyPair(ctx context.Context) (string, error) {
	var id string
	err := n.call(ctx, &id, "shh_newKeyPair")
	return id, err
}

// AddPrivateKey implements interfaces.Node. The key is sent 0x prefixed.
func (n *Node) AddPrivateKey(ctx context.Context, privateKey string) (string, error) {
	if !strings.HasPrefix(privateKey, "0x") {
		privateKey = "0x" + privateKey
	}
	var id string
	err := n.call(ctx, &id, "shh_addPrivateKey", privateKey)
	return id, err
}

// GetPublicKey implements interfaces.Node.
func (n *Node) GetPublicKey(ctx context.Context, keyID string) (string, error) {
	var pub hexutil.Bytes
	if err := n.call(ctx, &pub, "shh_getPublicKey", keyID); err != nil {
		return "", err
	}
	return pub.String(), nil
}

// GenerateSymKeyFromPassword implements interfaces.Node.
func (n *Node) GenerateSymKeyFromPassword(ctx context.Context, password string) (string, error) {
	var id string
	err := n.call(ctx, &id, "shh_generateSymKeyFromPassword", password)
	return id, err
}

// Post implements interfaces.Node.
func (n *Node) Post(ctx context.Context, msg interfaces.NewMessage) (string, error) {
	var hash hexutil.Bytes
	if err := n.call(ctx, &hash, "shh_post", msg); err != nil {
		return "", err
	}
	return hash.String(), nil
}

// Subscribe implements interfaces.Node with an shh_subscribe("messages")
// subscription. HTTP nodes fail with rpc.ErrNotificationsUnsupported.
func (n *Node) Subscribe(ctx context.Context, criteria interfaces.Criteria, ch chan<- *interfaces.ReceivedMessage) (interfaces.Subscription, error) {
	sub, err := n.client.Subscribe(ctx, "shh", ch, "messages", criteria)
	if err != nil {
		return nil, fmt.Errorf("shh_subscribe: %w", err)
	}
	return sub, nil
}

// NewMessageFilter implements interfaces.Node.
func (n *Node) NewMessageFilter(ctx context.Context, criteria interfaces.Criteria) (string, error) {
	var id string
	err := n.call(ctx, &id, "shh_newMessageFilter", criteria)
	return id, err
}

// GetFilterMessages implements interfaces.Node.
func (n *Node) GetFilterMessages(ctx context.Context, filterID string) ([]*interfaces.ReceivedMessage, error) {
	var msgs []*interfaces.ReceivedMessage
	err := n.call(ctx, &msgs, "shh_getFilterMessages", filterID)
	return msgs, err
}

// DeleteMessageFilter implements interfaces.Node.
func (n *Node) DeleteMessageFilter(ctx context.Context, filterID string) (bool, error) {
	var ok bool
	err := n.call(ctx, &ok, "shh_deleteMessageFilter", filterID)
	return ok, err
}

// AddPeer implements interfaces.Node.
func (n *Node) AddPeer(ctx context.Context, enode string) (bool, error) {
	var ok bool
	err := n.call(ctx, &ok, "admin_addPeer", enode)
	return ok, err
}

// MarkTrustedPeer implements interfaces.Node.
func (n *Node) MarkTrustedPeer(ctx context.Context, enode string) (bool, error) {
	var ok bool
	err := n.call(ctx, &ok, "shh_markTrustedPeer", enode)
	return ok, err
}

// RequestMessages implements interfaces.Node. Node versions differ in what
// they return, so the result is ignored.
func (n *Node) RequestMessages(ctx context.Context, req interfaces.MessagesRequest) error {
	var result json.RawMessage
	return n.call(ctx, &result, "shhext_requestMessages", req)
}

// SupportsPush implements interfaces.Node.
func (n *Node) SupportsPush() bool {
	return n.push
}

// Close implements interfaces.Node.
func (n *Node) Close() {
	n.client.Close()
}
