package testing

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/sirupsen/logrus"
)

// subscriptionQueueSize bounds the messages buffered per push subscription.
const subscriptionQueueSize = 256

var (
	// ErrNodeClosed is returned by every call after Close.
	ErrNodeClosed = errors.New("simulated node closed")

	// ErrUnknownKey indicates a key id the node never issued.
	ErrUnknownKey = errors.New("unknown key id")

	// ErrFilterNotFound indicates an unknown or deleted filter id.
	ErrFilterNotFound = errors.New("filter not found")

	// ErrPeerNotTrusted is returned by RequestMessages for an untrusted mailserver.
	ErrPeerNotTrusted = errors.New("mailserver peer not trusted")
)

// PostRecord is a message accepted by Post, kept for test verification.
type PostRecord struct {
	Message   interfaces.NewMessage
	Hash      string
	Timestamp time.Time
}

// SimulatedNode is an in-memory shh node. Messages posted through it are
// routed to every matching subscription and filter, so several clients
// sharing one node can talk to each other.
type SimulatedNode struct {
	push bool

	mu        sync.Mutex
	nextID    uint64
	keyPairs  map[string]*ecdsa.PrivateKey
	symKeys   map[string]string
	subs      map[uint64]*simSubscription
	filters   map[string]*simFilter
	posts     []PostRecord
	requests  []interfaces.MessagesRequest
	peers     map[string]bool
	trusted   map[string]bool
	failures  map[string]error
	reject    bool
	minPoW    float64
	listening bool
	closed    bool
}

// NewSimulatedNode creates a node. push selects whether Subscribe is
// available; without it clients must poll filters.
func NewSimulatedNode(push bool) *SimulatedNode {
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedNode",
		"push":     push,
	}).Warn("SIMULATION NODE - NOT A REAL WHISPER NODE")

	return &SimulatedNode{
		push:      push,
		keyPairs:  make(map[string]*ecdsa.PrivateKey),
		symKeys:   make(map[string]string),
		subs:      make(map[uint64]*simSubscription),
		filters:   make(map[string]*simFilter),
		peers:     make(map[string]bool),
		trusted:   make(map[string]bool),
		failures:  make(map[string]error),
		listening: true,
	}
}

// SetFailure makes every later call to method return err. A nil err clears
// the failure. Method names match the interfaces.Node methods.
func (n *SimulatedNode) SetFailure(method string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		delete(n.failures, method)
		return
	}
	n.failures[method] = err
}

// SetListening sets the result of IsListening.
func (n *SimulatedNode) SetListening(listening bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listening = listening
}

// RejectPeers makes AddPeer and MarkTrustedPeer report false.
func (n *SimulatedNode) RejectPeers(reject bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reject = reject
}

// check must be called with mu held.
func (n *SimulatedNode) check(method string) error {
	if n.closed {
		return ErrNodeClosed
	}
	return n.failures[method]
}

func (n *SimulatedNode) newID(kind string) string {
	n.nextID++
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("%s-%d", kind, n.nextID))).Hex()[2:]
}

// SetMinPoW records the minimal proof of work.
func (n *SimulatedNode) SetMinPoW(_ context.Context, pow float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("SetMinPoW"); err != nil {
		return err
	}
	n.minPoW = pow
	return nil
}

// IsListening implements interfaces.Node.
func (n *SimulatedNode) IsListening(_ context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("IsListening"); err != nil {
		return false, err
	}
	return n.listening, nil
}

// NewKeyPair generates a secp256k1 key pair.
func (n *SimulatedNode) NewKeyPair(_ context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("NewKeyPair"); err != nil {
		return "", err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	id := n.newID("key")
	n.keyPairs[id] = key
	return id, nil
}

// AddPrivateKey imports a hex private key, with or without 0x.
func (n *SimulatedNode) AddPrivateKey(_ context.Context, privateKey string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("AddPrivateKey"); err != nil {
		return "", err
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	id := n.newID("key")
	n.keyPairs[id] = key
	return id, nil
}

// GetPublicKey returns the 0x prefixed uncompressed public key.
func (n *SimulatedNode) GetPublicKey(_ context.Context, keyID string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("GetPublicKey"); err != nil {
		return "", err
	}
	key, ok := n.keyPairs[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
	}
	return publicKeyHex(key), nil
}

// GenerateSymKeyFromPassword returns an id derived from the password, so
// equal passwords share a key across clients.
func (n *SimulatedNode) GenerateSymKeyFromPassword(_ context.Context, password string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("GenerateSymKeyFromPassword"); err != nil {
		return "", err
	}
	id := crypto.Keccak256Hash([]byte("symkey"), []byte(password)).Hex()[2:]
	n.symKeys[id] = password
	return id, nil
}

// Post routes msg to every matching subscription and filter.
func (n *SimulatedNode) Post(_ context.Context, msg interfaces.NewMessage) (string, error) {
	n.mu.Lock()
	if err := n.check("Post"); err != nil {
		n.mu.Unlock()
		return "", err
	}
	if err := n.validatePost(msg); err != nil {
		n.mu.Unlock()
		return "", err
	}

	sender := ""
	if msg.Sig != "" {
		sender = publicKeyHex(n.keyPairs[msg.Sig])
	}
	now := time.Now()
	n.nextID++
	hash := crypto.Keccak256Hash([]byte(msg.Payload), []byte(msg.Topic), []byte(fmt.Sprint(n.nextID))).Hex()
	n.posts = append(n.posts, PostRecord{Message: msg, Hash: hash, Timestamp: now})

	received := interfaces.ReceivedMessage{
		Sig:       sender,
		TTL:       msg.TTL,
		Timestamp: uint32(now.Unix()),
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		PoW:       msg.PowTarget,
		Hash:      hash,
		Dst:       msg.PublicKey,
	}
	targets := n.route(msg)
	n.mu.Unlock()

	for _, sub := range targets {
		m := received
		sub.enqueue(&m)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "SimulatedNode.Post",
		"topic":      msg.Topic,
		"recipients": len(targets),
	}).Debug("Simulated post routed")

	return hash, nil
}

// Inject routes a message as if it arrived from the network, bypassing
// post validation. Use it to deliver malformed payloads.
func (n *SimulatedNode) Inject(msg interfaces.NewMessage, sender string) {
	n.mu.Lock()
	n.nextID++
	received := interfaces.ReceivedMessage{
		Sig:       sender,
		TTL:       msg.TTL,
		Timestamp: uint32(time.Now().Unix()),
		Topic:     msg.Topic,
		Payload:   msg.Payload,
		Hash:      fmt.Sprintf("0xinjected%d", n.nextID),
		Dst:       msg.PublicKey,
	}
	targets := n.route(msg)
	n.mu.Unlock()

	for _, sub := range targets {
		m := received
		sub.enqueue(&m)
	}
}

func (n *SimulatedNode) validatePost(msg interfaces.NewMessage) error {
	if (msg.SymKeyID == "") == (msg.PublicKey == "") {
		return errors.New("exactly one of symKeyID and pubKey is required")
	}
	if msg.SymKeyID != "" {
		if _, ok := n.symKeys[msg.SymKeyID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, msg.SymKeyID)
		}
	}
	if msg.PublicKey != "" {
		raw, err := hexutil.Decode(msg.PublicKey)
		if err != nil {
			return fmt.Errorf("invalid public key: %w", err)
		}
		if _, err := crypto.UnmarshalPubkey(raw); err != nil {
			return fmt.Errorf("invalid public key: %w", err)
		}
	}
	if msg.Sig != "" {
		if _, ok := n.keyPairs[msg.Sig]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, msg.Sig)
		}
	}
	topic, err := hexutil.Decode(msg.Topic)
	if err != nil || len(topic) != 4 {
		return fmt.Errorf("invalid topic %q", msg.Topic)
	}
	if _, err := hexutil.Decode(msg.Payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// messageSink is a subscription or filter target for routed messages.
type messageSink interface {
	enqueue(msg *interfaces.ReceivedMessage)
}

// route must be called with mu held.
func (n *SimulatedNode) route(msg interfaces.NewMessage) []messageSink {
	var targets []messageSink
	for _, sub := range n.subs {
		if n.matches(sub.criteria, msg) {
			targets = append(targets, sub)
		}
	}
	for _, f := range n.filters {
		if n.matches(f.criteria, msg) {
			targets = append(targets, f)
		}
	}
	return targets
}

func (n *SimulatedNode) matches(c interfaces.Criteria, msg interfaces.NewMessage) bool {
	if len(c.Topics) > 0 {
		found := false
		for _, t := range c.Topics {
			if strings.EqualFold(t, msg.Topic) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if msg.SymKeyID != "" {
		return c.SymKeyID == msg.SymKeyID
	}
	key, ok := n.keyPairs[c.PrivateKeyID]
	if !ok {
		return false
	}
	return strings.EqualFold(publicKeyHex(key), msg.PublicKey)
}

// Subscribe implements interfaces.Node. It fails with
// rpc.ErrNotificationsUnsupported when the node was created without push.
func (n *SimulatedNode) Subscribe(_ context.Context, criteria interfaces.Criteria, ch chan<- *interfaces.ReceivedMessage) (interfaces.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("Subscribe"); err != nil {
		return nil, err
	}
	if !n.push {
		return nil, rpc.ErrNotificationsUnsupported
	}
	if err := n.validateCriteria(criteria); err != nil {
		return nil, err
	}

	n.nextID++
	sub := &simSubscription{
		id:       n.nextID,
		node:     n,
		criteria: criteria,
		out:      ch,
		queue:    make(chan *interfaces.ReceivedMessage, subscriptionQueueSize),
		errc:     make(chan error, 1),
		quit:     make(chan struct{}),
	}
	n.subs[sub.id] = sub
	go sub.forward()
	return sub, nil
}

func (n *SimulatedNode) validateCriteria(c interfaces.Criteria) error {
	if (c.SymKeyID == "") == (c.PrivateKeyID == "") {
		return errors.New("exactly one of symKeyID and privateKeyID is required")
	}
	if c.SymKeyID != "" {
		if _, ok := n.symKeys[c.SymKeyID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, c.SymKeyID)
		}
	}
	if c.PrivateKeyID != "" {
		if _, ok := n.keyPairs[c.PrivateKeyID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, c.PrivateKeyID)
		}
	}
	return nil
}

// NewMessageFilter implements interfaces.Node.
func (n *SimulatedNode) NewMessageFilter(_ context.Context, criteria interfaces.Criteria) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("NewMessageFilter"); err != nil {
		return "", err
	}
	if err := n.validateCriteria(criteria); err != nil {
		return "", err
	}
	id := n.newID("filter")
	n.filters[id] = &simFilter{criteria: criteria}
	return id, nil
}

// GetFilterMessages returns and clears the messages matched by a filter.
func (n *SimulatedNode) GetFilterMessages(_ context.Context, filterID string) ([]*interfaces.ReceivedMessage, error) {
	n.mu.Lock()
	if err := n.check("GetFilterMessages"); err != nil {
		n.mu.Unlock()
		return nil, err
	}
	f, ok := n.filters[filterID]
	n.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, filterID)
	}
	return f.drain(), nil
}

// DeleteMessageFilter implements interfaces.Node.
func (n *SimulatedNode) DeleteMessageFilter(_ context.Context, filterID string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("DeleteMessageFilter"); err != nil {
		return false, err
	}
	if _, ok := n.filters[filterID]; !ok {
		return false, nil
	}
	delete(n.filters, filterID)
	return true, nil
}

// AddPeer records enode as a peer.
func (n *SimulatedNode) AddPeer(_ context.Context, enode string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("AddPeer"); err != nil {
		return false, err
	}
	if n.reject {
		return false, nil
	}
	n.peers[enode] = true
	return true, nil
}

// MarkTrustedPeer records enode as trusted. The peer must have been added.
func (n *SimulatedNode) MarkTrustedPeer(_ context.Context, enode string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("MarkTrustedPeer"); err != nil {
		return false, err
	}
	if n.reject || !n.peers[enode] {
		return false, nil
	}
	n.trusted[enode] = true
	return true, nil
}

// RequestMessages records req. The mailserver peer must be trusted.
func (n *SimulatedNode) RequestMessages(_ context.Context, req interfaces.MessagesRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.check("RequestMessages"); err != nil {
		return err
	}
	if !n.trusted[req.MailserverPeer] {
		return fmt.Errorf("%w: %s", ErrPeerNotTrusted, req.MailserverPeer)
	}
	if _, ok := n.symKeys[req.SymKeyID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, req.SymKeyID)
	}
	n.requests = append(n.requests, req)
	return nil
}

// SupportsPush implements interfaces.Node.
func (n *SimulatedNode) SupportsPush() bool {
	return n.push
}

// Close ends every subscription with rpc.ErrClientQuit and rejects later
// calls.
func (n *SimulatedNode) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := make([]*simSubscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.subs = make(map[uint64]*simSubscription)
	n.filters = make(map[string]*simFilter)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.fail(rpc.ErrClientQuit)
	}
}

// FailSubscriptions ends every push subscription with err, as a dropped
// connection would.
func (n *SimulatedNode) FailSubscriptions(err error) {
	n.mu.Lock()
	subs := make([]*simSubscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.subs = make(map[uint64]*simSubscription)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

// Posts returns a copy of every accepted post.
func (n *SimulatedNode) Posts() []PostRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]PostRecord, len(n.posts))
	copy(out, n.posts)
	return out
}

// Requests returns a copy of every accepted mailserver request.
func (n *SimulatedNode) Requests() []interfaces.MessagesRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]interfaces.MessagesRequest, len(n.requests))
	copy(out, n.requests)
	return out
}

// IsTrusted reports whether enode was marked trusted.
func (n *SimulatedNode) IsTrusted(enode string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trusted[enode]
}

// MinPoW returns the last value passed to SetMinPoW.
func (n *SimulatedNode) MinPoW() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.minPoW
}

// SubscriptionCount returns the number of live push subscriptions.
func (n *SimulatedNode) SubscriptionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// FilterCount returns the number of installed filters.
func (n *SimulatedNode) FilterCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.filters)
}

// Closed reports whether Close was called.
func (n *SimulatedNode) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func publicKeyHex(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	return hexutil.Encode(crypto.FromECDSAPub(&key.PublicKey))
}

type simSubscription struct {
	id       uint64
	node     *SimulatedNode
	criteria interfaces.Criteria
	out      chan<- *interfaces.ReceivedMessage
	queue    chan *interfaces.ReceivedMessage
	errc     chan error

	quit     chan struct{}
	quitOnce sync.Once
}

func (s *simSubscription) enqueue(msg *interfaces.ReceivedMessage) {
	select {
	case <-s.quit:
	case s.queue <- msg:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "simSubscription.enqueue",
			"hash":     msg.Hash,
		}).Warn("Subscription queue full, dropping message")
	}
}

func (s *simSubscription) forward() {
	for {
		select {
		case <-s.quit:
			return
		case msg := <-s.queue:
			select {
			case <-s.quit:
				return
			case s.out <- msg:
			}
		}
	}
}

func (s *simSubscription) fail(err error) {
	s.quitOnce.Do(func() {
		close(s.quit)
		s.errc <- err
		close(s.errc)
	})
}

func (s *simSubscription) Err() <-chan error {
	return s.errc
}

func (s *simSubscription) Unsubscribe() {
	s.node.mu.Lock()
	delete(s.node.subs, s.id)
	s.node.mu.Unlock()

	s.quitOnce.Do(func() {
		close(s.quit)
		close(s.errc)
	})
}

type simFilter struct {
	criteria interfaces.Criteria

	mu      sync.Mutex
	pending []*interfaces.ReceivedMessage
}

func (f *simFilter) enqueue(msg *interfaces.ReceivedMessage) {
	f.mu.Lock()
	f.pending = append(f.pending, msg)
	f.mu.Unlock()
}

func (f *simFilter) drain() []*interfaces.ReceivedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}
