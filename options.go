package whisperchat

import (
	"context"
	"time"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/interfaces"
	"github.com/opd-ai/whisperchat/mailserver"
	"github.com/opd-ai/whisperchat/shh"
	"github.com/opd-ai/whisperchat/subscription"
)

// Post defaults.
const (
	DefaultPowTarget = 0.002
	DefaultPowTime   = 1
	DefaultTTL       = 10
)

// Dialer connects to a node by URL.
type Dialer func(ctx context.Context, url string) (interfaces.Node, error)

// DialShh is the default Dialer. It connects over WebSocket, HTTP or IPC
// depending on the URL.
func DialShh(ctx context.Context, url string) (interfaces.Node, error) {
	node, err := shh.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Options contains configuration options for creating a Client.
type Options struct {
	// PowTarget is the proof of work stamped on posts and the node minimum.
	PowTarget float64
	// PowTime is the time in seconds the node may spend on proof of work.
	PowTime uint32
	// TTL is the envelope time to live in seconds.
	TTL uint32

	ChannelPollInterval time.Duration
	UserPollInterval    time.Duration
	// ForcePolling polls filters even when the connection can push.
	ForcePolling bool

	MailserverPeerDelay time.Duration
	// MailserverTimeout is the default history request timeout in seconds.
	MailserverTimeout int

	// TimeProvider stamps outgoing envelopes. Nil uses the wall clock.
	TimeProvider envelope.TimeProvider
	// Dialer opens node connections for Connect. Nil uses DialShh.
	Dialer Dialer
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		PowTarget:           DefaultPowTarget,
		PowTime:             DefaultPowTime,
		TTL:                 DefaultTTL,
		ChannelPollInterval: subscription.DefaultChannelPollInterval,
		UserPollInterval:    subscription.DefaultUserPollInterval,
		ForcePolling:        false,
		MailserverPeerDelay: mailserver.DefaultPeerDelay,
		MailserverTimeout:   mailserver.DefaultTimeout,
		TimeProvider:        envelope.DefaultTimeProvider{},
		Dialer:              DialShh,
	}
}

func (o *Options) backendConfig() interfaces.BackendConfig {
	return interfaces.BackendConfig{
		ForcePolling:        o.ForcePolling,
		ChannelPollInterval: o.ChannelPollInterval,
		UserPollInterval:    o.UserPollInterval,
	}
}
