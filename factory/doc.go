// Package factory selects the subscription backend for a node connection.
//
// Push subscriptions need a connection that carries notifications (WebSocket
// or IPC). Over HTTP the node can only be polled. The factory inspects
// interfaces.Node.SupportsPush and the configuration and creates either a
// subscription.PushBackend or a subscription.PollBackend, so consumers never
// branch on the transport.
//
// # Configuration
//
// The factory supports configuration via environment variables:
//   - WHISPERCHAT_FORCE_POLLING: "true" or "false" to always poll
//   - WHISPERCHAT_CHANNEL_POLL_INTERVAL_MS: integer milliseconds between channel polls
//   - WHISPERCHAT_USER_POLL_INTERVAL_MS: integer milliseconds between direct message polls
//
// Out of range or unparsable values are ignored with a warning.
//
// # Usage
//
//	factory := NewBackendFactory()
//	engine, err := factory.CreateEngine(node)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Mode Switching
//
//	factory.SwitchToPolling() // poll even when push is available
//	factory.SwitchToPush()    // back to push when available
package factory
