// Package subscription turns node message streams into decoded envelope
// deliveries.
//
// An Engine opens streams through an interfaces.SubscriptionBackend. Two
// backends exist: PushBackend uses live node subscriptions and PollBackend
// installs a filter and polls it on an interval. Channel streams poll every
// 2s and the user stream every 250ms unless configured otherwise.
//
// Every open stream is owned by a Handle:
//
//	h, err := engine.Subscribe(ctx, criteria, subscription.StreamChannel,
//	    func(d *subscription.Delivery) error {
//	        fmt.Println(d.Payload.Content)
//	        return nil
//	    },
//	    func(err error) { log.Println(err) })
//	...
//	h.Unsubscribe()
//
// Payloads that fail to decode are reported to the error handler and the
// stream continues. Deliveries for one handle never overlap, and a delivery
// handler may unsubscribe its own handle.
package subscription
