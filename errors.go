package whisperchat

import (
	"errors"

	"github.com/opd-ai/whisperchat/envelope"
	"github.com/opd-ai/whisperchat/mailserver"
	"github.com/opd-ai/whisperchat/subscription"
)

var (
	// ErrConnection indicates the node connection could not be set up.
	ErrConnection = errors.New("connection error")

	// ErrNotConnected is returned by operations that need a connected client.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected is returned by Connect on a client that is not
	// disconnected.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrUnknownChannel indicates a channel that was never joined.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrUnknownContact indicates a contact that is not in the registry or
	// a public key that is not a contact code.
	ErrUnknownContact = errors.New("unknown contact")

	// ErrTransport indicates a failed node call.
	ErrTransport = errors.New("transport error")
)

// Errors surfaced from subpackages, re-exported for errors.Is checks.
var (
	ErrDecode                  = envelope.ErrDecode
	ErrMailserverNotConfigured = mailserver.ErrNotConfigured
	ErrMailserverRejected      = mailserver.ErrPeerRejected
	ErrAlreadyClosed           = subscription.ErrAlreadyClosed
)
