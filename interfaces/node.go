package interfaces

import "context"

// Criteria selects the messages a subscription or filter delivers.
type Criteria struct {
	SymKeyID     string   `json:"symKeyID,omitempty"`
	PrivateKeyID string   `json:"privateKeyID,omitempty"`
	Sig          string   `json:"sig,omitempty"`
	MinPow       float64  `json:"minPow,omitempty"`
	Topics       []string `json:"topics"`
	AllowP2P     bool     `json:"allowP2P"`
}

// NewMessage is the argument of shh_post. Exactly one of SymKeyID and
// PublicKey addresses the message.
type NewMessage struct {
	SymKeyID   string  `json:"symKeyID,omitempty"`
	PublicKey  string  `json:"pubKey,omitempty"`
	Sig        string  `json:"sig,omitempty"`
	TTL        uint32  `json:"ttl"`
	Topic      string  `json:"topic"`
	Payload    string  `json:"payload"`
	PowTime    uint32  `json:"powTime"`
	PowTarget  float64 `json:"powTarget"`
	TargetPeer string  `json:"targetPeer,omitempty"`
}

// ReceivedMessage is a message delivered by a subscription or filter. Sig is
// the sender's public key.
type ReceivedMessage struct {
	Sig       string  `json:"sig,omitempty"`
	TTL       uint32  `json:"ttl"`
	Timestamp uint32  `json:"timestamp"`
	Topic     string  `json:"topic"`
	Payload   string  `json:"payload"`
	Padding   string  `json:"padding,omitempty"`
	PoW       float64 `json:"pow"`
	Hash      string  `json:"hash"`
	Dst       string  `json:"recipientPublicKey,omitempty"`
}

// MessagesRequest is the argument of shhext_requestMessages. From and To are
// unix timestamps in seconds, Timeout is in seconds.
type MessagesRequest struct {
	MailserverPeer string   `json:"mailserverPeer"`
	SymKeyID       string   `json:"symKeyID"`
	Topics         []string `json:"topics"`
	From           int64    `json:"from"`
	To             int64    `json:"to"`
	Limit          int      `json:"limit"`
	Timeout        int      `json:"timeout"`
}

// Subscription is a live push subscription. Err is closed after Unsubscribe.
type Subscription interface {
	Err() <-chan error
	Unsubscribe()
}

// Node is the capability surface of an shh node.
type Node interface {
	// SetMinPoW sets the minimal proof of work the node accepts.
	SetMinPoW(ctx context.Context, pow float64) error

	// IsListening reports whether the node is accepting peer connections.
	IsListening(ctx context.Context) (bool, error)

	// NewKeyPair generates a key pair and returns its id.
	NewKeyPair(ctx context.Context) (string, error)

	// AddPrivateKey imports a hex encoded private key and returns its id.
	AddPrivateKey(ctx context.Context, privateKey string) (string, error)

	// GetPublicKey returns the hex encoded public key of a key pair.
	GetPublicKey(ctx context.Context, keyID string) (string, error)

	// GenerateSymKeyFromPassword derives a symmetric key and returns its id.
	GenerateSymKeyFromPassword(ctx context.Context, password string) (string, error)

	// Post sends a message and returns its envelope hash.
	Post(ctx context.Context, msg NewMessage) (string, error)

	// Subscribe delivers matching messages into ch until unsubscribed.
	Subscribe(ctx context.Context, criteria Criteria, ch chan<- *ReceivedMessage) (Subscription, error)

	// NewMessageFilter installs a pull filter and returns its id.
	NewMessageFilter(ctx context.Context, criteria Criteria) (string, error)

	// GetFilterMessages returns the messages matched since the previous call.
	GetFilterMessages(ctx context.Context, filterID string) ([]*ReceivedMessage, error)

	// DeleteMessageFilter removes a pull filter.
	DeleteMessageFilter(ctx context.Context, filterID string) (bool, error)

	// AddPeer asks the node to connect to a peer.
	AddPeer(ctx context.Context, enode string) (bool, error)

	// MarkTrustedPeer allows a peer to deliver expired envelopes.
	MarkTrustedPeer(ctx context.Context, enode string) (bool, error)

	// RequestMessages asks a mailserver peer to replay history.
	RequestMessages(ctx context.Context, req MessagesRequest) error

	// SupportsPush reports whether Subscribe is available.
	SupportsPush() bool

	// Close releases the connection to the node.
	Close()
}
