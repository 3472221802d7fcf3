package envelope

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTimeProvider struct {
	fixedTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.fixedTime
}

func TestRoundTripMessages(t *testing.T) {
	codec := NewCodec(&mockTimeProvider{fixedTime: time.UnixMilli(0)})

	testCases := []struct {
		name    string
		payload *Payload
	}{
		{"plain text", NewMessage("hi", ContentTypeText, GroupMessage, 1)},
		{"unicode text", NewMessage("こんにちは 友達 🦦", ContentTypeText, UserMessage, 7)},
		{"html characters", NewMessage("<b>&amp;</b>", ContentTypeText, UserMessage, 3)},
		{"json content", NewMessage(`{"amount":"1.5","type":"request"}`, ContentTypeJSON, GroupMessage, 12)},
		{"empty content", NewMessage("", ContentTypeText, GroupMessage, 2)},
		{"chat request", NewChatRequest("Bob", "data:image/png;base64,AAAA", 4)},
		{"unicode chat request", NewChatRequest("Zoë", "", 9)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := codec.Encode(tc.payload)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, "0x"))

			decoded, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, tc.payload.Tag, decoded.Tag)
			assert.Equal(t, tc.payload.ClockValue, decoded.ClockValue)
			assert.Equal(t, int64(0), decoded.Timestamp)
			assert.Equal(t, tc.payload.MessageType, decoded.MessageType)
			if tc.payload.Tag == TagMessage {
				assert.Equal(t, tc.payload.Content, decoded.Content)
				assert.Equal(t, tc.payload.ContentType, decoded.ContentType)
			} else {
				assert.Equal(t, tc.payload.DisplayName, decoded.DisplayName)
				assert.Equal(t, tc.payload.ProfilePic, decoded.ProfilePic)
			}
		})
	}
}

func TestMarshalWireLayout(t *testing.T) {
	codec := NewCodec(&mockTimeProvider{fixedTime: time.UnixMilli(5)})

	data, err := codec.Marshal(NewMessage("a<b", ContentTypeText, GroupMessage, 10))
	require.NoError(t, err)
	assert.Equal(t,
		`["~#c4",["a<b","text/plain","~:public-group-user-message",10,5,["^ ","~:text","a<b"]]]`,
		string(data))

	data, err = codec.Marshal(NewChatRequest("Bob", "data:x", 10))
	require.NoError(t, err)
	assert.Equal(t, `["~#c2",["Bob","data:x","~:user-message",10,5]]`, string(data))
}

func TestEncodeIsHexOfMarshal(t *testing.T) {
	codec := NewCodec(&mockTimeProvider{fixedTime: time.UnixMilli(0)})
	p := NewMessage("hello", ContentTypeText, UserMessage, 1)

	data, err := codec.Marshal(p)
	require.NoError(t, err)
	encoded, err := codec.Encode(p)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(data), encoded)
}

func TestClockPlaceholderRule(t *testing.T) {
	before := time.Now().UnixMilli()
	encoded, err := Encode(NewMessage("late", ContentTypeText, GroupMessage, 1))
	after := time.Now().UnixMilli()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	offset := int64(31 * 24 * 60 * 60 * 1000)
	assert.GreaterOrEqual(t, decoded.ClockValue, (before+offset)*100)
	assert.LessOrEqual(t, decoded.ClockValue, (after+offset)*100)
	assert.GreaterOrEqual(t, decoded.Timestamp, before)
	assert.LessOrEqual(t, decoded.Timestamp, after)
}

func TestClockPlaceholderKeepsFutureValues(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	codec := NewCodec(&mockTimeProvider{fixedTime: now})

	future := now.UnixMilli() + 1
	encoded, err := codec.Encode(NewMessage("x", ContentTypeText, UserMessage, future))
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, future, decoded.ClockValue)

	equal := now.UnixMilli()
	assert.Equal(t, equal, PlaceholderClock(equal, now.UnixMilli()))
	assert.Equal(t, (now.UnixMilli()+ClockPlaceholderOffset.Milliseconds())*100, PlaceholderClock(equal-1, now.UnixMilli()))
}

func TestEncodeDoesNotMutatePayload(t *testing.T) {
	p := NewMessage("x", ContentTypeText, UserMessage, 1)
	_, err := Encode(p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ClockValue)
	assert.Equal(t, int64(0), p.Timestamp)
}

func TestEncodeRejectsUnknownTag(t *testing.T) {
	_, err := Encode(&Payload{Tag: "~#zz"})
	assert.True(t, errors.Is(err, ErrUnknownTag))

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"bad hex", "0xzz"},
		{"odd length", "0x123"},
		{"not json", hexutil.Encode([]byte("hello"))},
		{"not an array", hexutil.Encode([]byte(`{"a":1}`))},
		{"short tuple", hexutil.Encode([]byte(`["~#c4"]`))},
		{"details not array", hexutil.Encode([]byte(`["~#c4","x"]`))},
		{"short message details", hexutil.Encode([]byte(`["~#c4",["hi","text/plain"]]`))},
		{"bad clock", hexutil.Encode([]byte(`["~#c4",["hi","text/plain","~:user-message","one",0]]`))},
		{"unknown tag", hexutil.Encode([]byte(`["~#zz",["hi"]]`))},
		{"short chat request", hexutil.Encode([]byte(`["~#c2",["Bob"]]`))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decode(tc.payload)
			assert.Nil(t, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode), "error %v should wrap ErrDecode", err)
		})
	}
}

func TestDecodeAcceptsUnprefixedHex(t *testing.T) {
	raw := `["~#c4",["hi","text/plain","~:user-message",3,4,["^ ","~:text","hi"]]]`
	encoded := strings.TrimPrefix(hexutil.Encode([]byte(raw)), "0x")

	p, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "hi", p.Content)
	assert.Equal(t, int64(3), p.ClockValue)
	assert.Equal(t, int64(4), p.Timestamp)
}

func TestDecodeObjectContent(t *testing.T) {
	raw := `["~#c4",[{"b": 2, "a": [1, 2]},"content/json","~:user-message",3,4]]`
	p, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	assert.True(t, p.IsJSON())

	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(p.Content), &v))
	assert.Equal(t, float64(2), v["b"])
}

func TestDecodeChatRequestWithoutClock(t *testing.T) {
	raw := `["~#c2",["Bob","data:...","0xaddress","fcm-token"]]`
	p, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, TagChatRequest, p.Tag)
	assert.Equal(t, "Bob", p.DisplayName)
	assert.Equal(t, "data:...", p.ProfilePic)
	assert.Equal(t, int64(0), p.ClockValue)
}

func TestDecodeFractionalClock(t *testing.T) {
	raw := `["~#c4",["hi","text/plain","~:user-message",15.0,4]]`
	p, err := Unmarshal([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.ClockValue)
}

func TestTopicFromName(t *testing.T) {
	assert.Equal(t, "0xc5d24601", TopicFromName(""))

	for _, name := range []string{"general", "status", "友達"} {
		topic := TopicFromName(name)
		assert.Len(t, topic, 2+2*TopicLength)
		assert.Equal(t, hexutil.Encode(crypto.Keccak256([]byte(name))[:TopicLength]), topic)
		assert.Equal(t, topic, TopicFromName(name))
	}
}

func TestTopicOf(t *testing.T) {
	assert.Equal(t, ContactDiscoveryTopic, TopicOf(ContactDiscoveryTopic))
	assert.Equal(t, TopicFromName("general"), TopicOf("general"))
	assert.True(t, IsTopic("0x12345678"))
	assert.False(t, IsTopic("general"))
}
