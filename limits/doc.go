// Package limits provides centralized payload size constants and validation
// functions for whisperchat. Every component that frames or receives an
// envelope payload checks it here.
//
// # Size Hierarchy
//
//   - MaxEnvelopeSize (1MB): the default whisper node limit on a whole
//     envelope. Received payloads are checked against it before decoding.
//
//   - MaxPayloadSize: MaxEnvelopeSize minus EnvelopeOverhead, the worst case
//     the node adds when it signs, pads and encrypts a payload.
//
//   - MaxContentSize: half of MaxPayloadSize, since a rich text message
//     carries its content twice.
//
// # Validation Functions
//
//	if err := limits.ValidatePayload(framed); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// For custom size limits, use the generic ValidateMessageSize function:
//
//	err := limits.ValidateMessageSize(data, 4096)
//
// Channel names are checked with ValidateChannelName, which returns
// ErrChannelNameEmpty or ErrChannelNameTooLong.
package limits
