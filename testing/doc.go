// Package testing provides an in-memory whisper node for deterministic
// testing of whisperchat.
//
// # Overview
//
// SimulatedNode implements interfaces.Node without a network. Posted
// messages are routed to every push subscription and pull filter whose
// criteria match, so two clients sharing one node exchange messages the way
// they would through a real shh node.
//
// # Push vs Poll
//
// NewSimulatedNode(true) supports Subscribe and exercises the push backend.
// NewSimulatedNode(false) rejects Subscribe with
// rpc.ErrNotificationsUnsupported, as an HTTP connection would, which drives
// clients onto the poll backend.
//
// # Usage
//
//	node := testing.NewSimulatedNode(true)
//	client := whisperchat.NewClient(opts)
//	client.ConnectNode(ctx, node, "")
//
//	// Verify what was sent
//	posts := node.Posts()
//
// # Keys
//
// Key pairs are real secp256k1 keys generated with go-ethereum's crypto
// package. Symmetric key ids are derived from the password, so clients that
// join the same channel name share a key id.
//
// # Failure Injection
//
// SetFailure makes a method fail, RejectPeers makes peer admission report
// false, FailSubscriptions drops every live subscription and Inject routes a
// payload without validating it.
//
// # Thread Safety
//
// All methods on SimulatedNode are safe for concurrent use from multiple
// goroutines.
package testing
