// Package registry holds the in-memory channel and contact state of a client.
//
// # Overview
//
// The registry tracks two kinds of entries:
//
//   - Channel: a joined public channel with its symmetric key handle, topic
//     code and last seen clock value
//   - Contact: a peer addressed by public key with its derived username, last
//     seen clock value and optional profile fields
//
// Clock values only move forward. A receive advances the clock to the maximum
// of the current and the observed value; a send increments it by exactly one
// before framing:
//
//	reg := registry.New(username.FromSeed)
//	reg.JoinChannel("general", symKeyID, envelope.TopicFromName("general"))
//	clock, err := reg.NextChannelClock("general") // 1
//	reg.ObserveChannelClock("general", 42)         // 42
//
// # Re-joining
//
// Joining a channel that is already joined replaces the entry and resets its
// clock to zero. Peers only ever see the clock as a non-decreasing floor, so
// the reset is kept for compatibility and logged as a warning.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Accessors return copies of entries so
// callers never observe a partially updated Channel or Contact.
package registry
