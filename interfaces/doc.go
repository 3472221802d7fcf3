// Package interfaces defines the abstractions between the client and the shh
// node it talks to.
//
// This package provides the seams that let the same client code run against a
// live node over JSON-RPC or against an in-memory simulation, and against a
// node that pushes messages or one that must be polled.
//
// # Core Interfaces
//
// [Node] is the narrow capability surface the client consumes from the node:
// key management, posting, push subscriptions, pull filters, peer admission
// and mailserver history requests. The shh package implements it over
// go-ethereum's RPC client; the testing package implements it in memory:
//
//	node, err := shh.Dial(ctx, "ws://127.0.0.1:8546")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	keyID, err := node.NewKeyPair(ctx)
//
// [SubscriptionBackend] opens a message stream for a filter. The push backend
// relies on node subscriptions; the poll backend installs a filter and asks
// for new messages on an interval:
//
//	backend, err := factory.NewBackendFactory().CreateBackend(node)
//	stream, err := backend.Open(ctx, criteria, 2*time.Second, sink)
//	defer stream.Close()
//
// # Wire Types
//
// [Criteria], [NewMessage], [ReceivedMessage] and [MessagesRequest] mirror
// the JSON objects of the shh_* and shhext_* RPC methods. Payloads travel as
// 0x-prefixed hex strings; the envelope package owns their encoding.
package interfaces
