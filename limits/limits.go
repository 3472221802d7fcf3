// Package limits provides centralized payload size limits for whisper envelopes.
// This ensures consistent validation across the send path and the receive path.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxEnvelopeSize is the default whisper node message size limit (1MB).
	MaxEnvelopeSize = 1024 * 1024

	// SignatureLength is the size of the recoverable secp256k1 signature a
	// node appends when posting with sig.
	SignatureLength = 65

	// PaddingLimit is the largest padding a node adds before encryption.
	PaddingLimit = 256

	// EnvelopeOverhead is the worst case a node adds around a payload:
	// flags (1), size field (4), signature, padding, AES-GCM nonce (12) and
	// tag (16).
	EnvelopeOverhead = 1 + 4 + SignatureLength + PaddingLimit + 12 + 16

	// MaxPayloadSize is the largest framed payload that still fits in an
	// envelope once the node wraps it.
	MaxPayloadSize = MaxEnvelopeSize - EnvelopeOverhead

	// MaxContentSize bounds message content before framing. Rich text
	// messages carry the content twice.
	MaxContentSize = MaxPayloadSize / 2

	// MaxChannelNameLength bounds public channel names.
	MaxChannelNameLength = 255
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrChannelNameEmpty indicates an empty channel name
	ErrChannelNameEmpty = errors.New("empty channel name")

	// ErrChannelNameTooLong indicates a channel name over MaxChannelNameLength
	ErrChannelNameTooLong = errors.New("channel name too long")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePayload checks a framed payload against MaxPayloadSize before it is
// posted.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrMessageEmpty
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds limit %d", ErrMessageTooLarge, len(payload), MaxPayloadSize)
	}
	return nil
}

// ValidateHexPayload checks a received hex payload. The decoded size must not
// exceed MaxEnvelopeSize; the 0x prefix is optional.
func ValidateHexPayload(hexPayload string) error {
	n := len(hexPayload)
	if n >= 2 && hexPayload[0] == '0' && (hexPayload[1] == 'x' || hexPayload[1] == 'X') {
		n -= 2
	}
	if n == 0 {
		return ErrMessageEmpty
	}
	if size := (n + 1) / 2; size > MaxEnvelopeSize {
		return fmt.Errorf("%w: received payload size %d exceeds limit %d", ErrMessageTooLarge, size, MaxEnvelopeSize)
	}
	return nil
}

// ValidateContent checks message content before framing. Empty content is
// allowed.
func ValidateContent(content string) error {
	if len(content) > MaxContentSize {
		return fmt.Errorf("%w: content size %d exceeds limit %d", ErrMessageTooLarge, len(content), MaxContentSize)
	}
	return nil
}

// ValidateChannelName checks a public channel name.
func ValidateChannelName(name string) error {
	if name == "" {
		return ErrChannelNameEmpty
	}
	if len(name) > MaxChannelNameLength {
		return fmt.Errorf("%w: length %d exceeds limit %d", ErrChannelNameTooLong, len(name), MaxChannelNameLength)
	}
	return nil
}
