// Package shh connects whisperchat to a whisper node over JSON-RPC.
//
// Node implements interfaces.Node on top of go-ethereum's rpc.Client, so
// the same code talks to a node over WebSocket, HTTP or an IPC socket:
//
//	node, err := shh.Dial(ctx, "ws://localhost:8546")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
// WebSocket handshakes carry the "statusjs" Origin header. HTTP connections
// cannot carry notifications, so SupportsPush reports false for them and the
// factory package selects the polling backend.
package shh
