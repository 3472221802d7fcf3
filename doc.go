// Package whisperchat implements a chat client over the shh (Whisper) RPC
// interface of an Ethereum node.
//
// A Client joins public channels, whose symmetric key and topic are derived
// from the channel name, and exchanges direct messages with contacts
// addressed by their uncompressed secp256k1 public key. Every outgoing
// message carries a per-destination logical clock. Incoming envelopes are
// decoded and dispatched to callbacks, either from push subscriptions or
// from polled filters when the connection cannot push.
//
// # Getting Started
//
//	client := whisperchat.NewClient(whisperchat.NewOptions())
//	if err := client.Connect(ctx, "ws://localhost:8546", ""); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	if err := client.JoinChat(ctx, "general"); err != nil {
//	    log.Fatal(err)
//	}
//
//	client.OnMessage(ctx, "general", func(err error, msg *whisperchat.Message) {
//	    if err != nil {
//	        log.Println(err)
//	        return
//	    }
//	    fmt.Printf("<%s> %s\n", msg.Username, msg.Content)
//	})
//
//	err := client.SendMessage(ctx, whisperchat.ToChannel("general"), "hi")
//
// # Direct Messages
//
// Passing an empty channel to OnMessage subscribes to envelopes encrypted to
// the client identity. Senders that are not yet contacts are added on first
// contact, and chat requests update the contact profile before the
// OnChatRequest callback runs:
//
//	client.OnChatRequest(func(err error, req *whisperchat.ChatRequest) {
//	    fmt.Printf("%s is now %s\n", req.Username, req.DisplayName)
//	})
//	client.OnMessage(ctx, "", handleDirect)
//
//	err := client.SendMessage(ctx, whisperchat.ToContact(contactCode), "hello")
//
// # Connections
//
// Connect picks the transport from the URL scheme: ws and wss support push
// subscriptions, http and https fall back to filter polling, and anything
// else is treated as an IPC socket path. ConnectNode attaches to any
// interfaces.Node, such as the simulated node in the testing package.
//
// # History
//
// A mailserver replays envelopes that were sent while the client was offline:
//
//	if err := client.UseMailserver(ctx, enode); err != nil {
//	    log.Fatal(err)
//	}
//	err := client.RequestChannelMessages(ctx, "general", whisperchat.RequestOptions{Limit: 100})
//
// Replayed envelopes are delivered through the regular subscriptions.
package whisperchat
