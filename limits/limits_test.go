package limits

import (
	"errors"
	"strings"
	"testing"
)

// TestEnvelopeOverheadCalculation verifies MaxPayloadSize leaves room for the
// node's envelope wrapping
func TestEnvelopeOverheadCalculation(t *testing.T) {
	if EnvelopeOverhead != 354 {
		t.Errorf("EnvelopeOverhead = %d, want 354", EnvelopeOverhead)
	}
	if MaxPayloadSize+EnvelopeOverhead != MaxEnvelopeSize {
		t.Errorf("MaxPayloadSize (%d) + EnvelopeOverhead (%d) != MaxEnvelopeSize (%d)",
			MaxPayloadSize, EnvelopeOverhead, MaxEnvelopeSize)
	}
}

// TestConstantConsistency verifies internal consistency of all size constants
func TestConstantConsistency(t *testing.T) {
	if MaxContentSize >= MaxPayloadSize {
		t.Errorf("MaxContentSize (%d) should be < MaxPayloadSize (%d)", MaxContentSize, MaxPayloadSize)
	}
	if MaxPayloadSize >= MaxEnvelopeSize {
		t.Errorf("MaxPayloadSize (%d) should be < MaxEnvelopeSize (%d)", MaxPayloadSize, MaxEnvelopeSize)
	}
	if MaxChannelNameLength <= 0 {
		t.Errorf("MaxChannelNameLength must be positive, got %d", MaxChannelNameLength)
	}
}

func TestValidateMessageSize(t *testing.T) {
	tests := []struct {
		name    string
		message []byte
		maxSize int
		wantErr error
	}{
		{"empty message", []byte{}, 10, ErrMessageEmpty},
		{"nil message", nil, 10, ErrMessageEmpty},
		{"at limit", make([]byte, 10), 10, nil},
		{"over limit", make([]byte, 11), 10, ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessageSize(tt.message, tt.maxSize)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMessageSize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestValidatePayload tests the framed payload validation function
func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{
			name:    "empty payload",
			payload: []byte{},
			wantErr: ErrMessageEmpty,
		},
		{
			name:    "valid small payload",
			payload: []byte(`["~#c4",["hi","text/plain","~:user-message",1,0]]`),
			wantErr: nil,
		},
		{
			name:    "valid max-size payload",
			payload: make([]byte, MaxPayloadSize),
			wantErr: nil,
		},
		{
			name:    "payload too large",
			payload: make([]byte, MaxPayloadSize+1),
			wantErr: ErrMessageTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHexPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"empty", "", ErrMessageEmpty},
		{"bare prefix", "0x", ErrMessageEmpty},
		{"prefixed", "0x5b5d", nil},
		{"unprefixed", "5b5d", nil},
		{"upper prefix", "0X5b5d", nil},
		{"at limit", "0x" + strings.Repeat("00", MaxEnvelopeSize), nil},
		{"over limit", strings.Repeat("00", MaxEnvelopeSize+1), ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHexPayload(tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateHexPayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	if err := ValidateContent(""); err != nil {
		t.Errorf("empty content should be allowed, got %v", err)
	}
	if err := ValidateContent(strings.Repeat("a", MaxContentSize)); err != nil {
		t.Errorf("content at limit should be allowed, got %v", err)
	}
	err := ValidateContent(strings.Repeat("a", MaxContentSize+1))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ValidateContent() error = %v, want %v", err, ErrMessageTooLarge)
	}
}

func TestValidateChannelName(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		wantErr error
	}{
		{"empty", "", ErrChannelNameEmpty},
		{"valid", "general", nil},
		{"at limit", strings.Repeat("c", MaxChannelNameLength), nil},
		{"too long", strings.Repeat("c", MaxChannelNameLength+1), ErrChannelNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannelName(tt.channel)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChannelName() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
