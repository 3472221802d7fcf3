// Package envelope implements the application payload carried inside shh
// envelopes.
//
// A payload is the JSON tuple [tag, details] rendered as a 0x-prefixed hex
// string. Ordinary messages carry
//
//	[content, contentType, messageType, clockValue, timestamp, ["^ ", "~:text", content]]
//
// and chat requests carry the contact's profile in the leading positions:
//
//	[displayName, profilePic, messageType, clockValue, timestamp]
//
// Example:
//
//	codec := envelope.NewCodec(nil)
//	hexPayload, err := codec.Encode(envelope.NewMessage("hi", envelope.ContentTypeText, envelope.GroupMessage, 1))
//	...
//	p, err := envelope.Decode(hexPayload)
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// Tag identifies the kind of payload.
type Tag string

const (
	// TagMessage marks an ordinary chat message.
	TagMessage Tag = "~#c4"
	// TagChatRequest marks a contact profile announcement.
	TagChatRequest Tag = "~#c2"
)

// MessageType distinguishes direct messages from public channel messages.
type MessageType string

const (
	UserMessage  MessageType = "~:user-message"
	GroupMessage MessageType = "~:public-group-user-message"
)

// ContentType describes how Content should be interpreted.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeJSON ContentType = "content/json"
)

// ClockPlaceholderOffset is added to the current time when a clock value
// older than the current time is encoded.
const ClockPlaceholderOffset = 31 * 24 * time.Hour

// ClockPlaceholderMultiplier scales the placeholder clock value.
const ClockPlaceholderMultiplier = 100

var (
	// ErrDecode indicates a payload that could not be decoded.
	ErrDecode = errors.New("envelope decode error")

	// ErrUnknownTag indicates a tag outside {message, chatRequest}.
	ErrUnknownTag = errors.New("unknown envelope tag")
)

var richTextHeader = []string{"^ ", "~:text"}

// Payload is the decoded form of an envelope.
type Payload struct {
	Tag         Tag
	Content     string
	ContentType ContentType
	MessageType MessageType
	ClockValue  int64
	Timestamp   int64

	// Chat request fields.
	DisplayName string
	ProfilePic  string
}

// NewMessage creates an ordinary message payload.
func NewMessage(content string, contentType ContentType, messageType MessageType, clock int64) *Payload {
	return &Payload{
		Tag:         TagMessage,
		Content:     content,
		ContentType: contentType,
		MessageType: messageType,
		ClockValue:  clock,
	}
}

// NewChatRequest creates a chat request payload announcing a profile.
func NewChatRequest(displayName, profilePic string, clock int64) *Payload {
	return &Payload{
		Tag:         TagChatRequest,
		ContentType: ContentTypeText,
		MessageType: UserMessage,
		ClockValue:  clock,
		DisplayName: displayName,
		ProfilePic:  profilePic,
	}
}

// IsJSON reports whether the content is JSON.
func (p *Payload) IsJSON() bool {
	return p.ContentType == ContentTypeJSON
}

// Codec stamps and encodes payloads. The zero value is not usable; use
// NewCodec.
type Codec struct {
	timeProvider TimeProvider
}

// NewCodec creates a codec. A nil time provider uses the wall clock.
func NewCodec(tp TimeProvider) *Codec {
	if tp == nil {
		tp = defaultTimeProvider
	}
	return &Codec{timeProvider: tp}
}

var defaultCodec = NewCodec(nil)

// Encode encodes p with the default codec.
func Encode(p *Payload) (string, error) {
	return defaultCodec.Encode(p)
}

// Encode stamps p with the current time and renders it as a hex payload. A
// clock value below the current time in milliseconds is replaced by
// (now + ClockPlaceholderOffset) * ClockPlaceholderMultiplier. The caller's
// payload is not modified.
func (c *Codec) Encode(p *Payload) (string, error) {
	data, err := c.Marshal(p)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(data), nil
}

// Marshal is Encode without the hex transform.
func (c *Codec) Marshal(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("payload cannot be nil")
	}

	now := c.timeProvider.Now().UnixMilli()
	clock := PlaceholderClock(p.ClockValue, now)

	var details []interface{}
	switch p.Tag {
	case TagMessage:
		details = []interface{}{
			p.Content,
			p.ContentType,
			p.MessageType,
			clock,
			now,
			[]interface{}{richTextHeader[0], richTextHeader[1], p.Content},
		}
	case TagChatRequest:
		details = []interface{}{
			p.DisplayName,
			p.ProfilePic,
			p.MessageType,
			clock,
			now,
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, p.Tag)
	}

	if clock != p.ClockValue {
		logrus.WithFields(logrus.Fields{
			"function":     "Codec.Marshal",
			"clock_value":  p.ClockValue,
			"placeholder":  clock,
			"now_millis":   now,
			"envelope_tag": p.Tag,
		}).Debug("Replacing stale clock value with placeholder")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}{p.Tag, details}); err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// PlaceholderClock returns the clock value the encoder stamps for clock at
// nowMillis.
func PlaceholderClock(clock, nowMillis int64) int64 {
	if clock < nowMillis {
		return (nowMillis + ClockPlaceholderOffset.Milliseconds()) * ClockPlaceholderMultiplier
	}
	return clock
}

// Decode reverses Encode. All failures wrap ErrDecode.
func Decode(hexPayload string) (*Payload, error) {
	data, err := DecodeHex(hexPayload)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// DecodeHex reverses the hex transform only. The 0x prefix is optional.
func DecodeHex(hexPayload string) ([]byte, error) {
	s := strings.TrimSpace(hexPayload)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %v", ErrDecode, err)
	}
	return data, nil
}

// Unmarshal parses the JSON tuple form of a payload.
func Unmarshal(data []byte) (*Payload, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(tuple) < 2 {
		return nil, fmt.Errorf("%w: expected [tag, details], got %d elements", ErrDecode, len(tuple))
	}

	var tag Tag
	if err := json.Unmarshal(tuple[0], &tag); err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrDecode, err)
	}

	var details []json.RawMessage
	if err := json.Unmarshal(tuple[1], &details); err != nil {
		return nil, fmt.Errorf("%w: details: %v", ErrDecode, err)
	}

	p := &Payload{Tag: tag}
	switch tag {
	case TagMessage:
		if len(details) < 5 {
			return nil, fmt.Errorf("%w: message details have %d elements", ErrDecode, len(details))
		}
		p.Content = contentString(details[0])
		p.ContentType = ContentType(optionalString(details[1]))
		p.MessageType = MessageType(optionalString(details[2]))
		clock, err := number(details[3])
		if err != nil {
			return nil, fmt.Errorf("%w: clock value: %v", ErrDecode, err)
		}
		p.ClockValue = clock
		p.Timestamp, _ = number(details[4])
	case TagChatRequest:
		if len(details) < 2 {
			return nil, fmt.Errorf("%w: chat request details have %d elements", ErrDecode, len(details))
		}
		p.ContentType = ContentTypeText
		p.DisplayName = optionalString(details[0])
		p.ProfilePic = optionalString(details[1])
		if len(details) > 2 {
			p.MessageType = MessageType(optionalString(details[2]))
		}
		// Peers that omit the clock leave it at zero.
		if len(details) > 3 {
			p.ClockValue, _ = number(details[3])
		}
		if len(details) > 4 {
			p.Timestamp, _ = number(details[4])
		}
	default:
		return nil, fmt.Errorf("%w: %v %q", ErrDecode, ErrUnknownTag, tag)
	}
	return p, nil
}

// contentString returns a JSON string's value, or the compact JSON text of
// any other value.
func contentString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func optionalString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func number(raw json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
