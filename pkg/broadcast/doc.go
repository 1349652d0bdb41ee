// Package broadcast provides a generic pub/sub messaging system.
//
// The session manager publishes security notices through a Broadcaster instead
// of keeping a package-level registry of connected clients; every operator
// stream owns a Subscriber handle and releases it when its context ends.
//
// # Usage
//
//	b := broadcast.NewMemoryBroadcaster[string](100)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	defer sub.Close()
//
//	go func() {
//		for msg := range sub.Receive(ctx) {
//			fmt.Println(msg.Data)
//		}
//	}()
//
//	b.Broadcast(ctx, broadcast.Message[string]{Data: "hello"})
//
// # Slow consumers
//
// Delivery never blocks. If a subscriber's buffer is full the message is dropped
// for that subscriber only.
//
// # Lifecycle
//
// Subscriptions end when their context is cancelled or Close is called; the
// receive channel is then closed. Closing the broadcaster closes every
// subscriber. Operations on closed values are safe and return nil.
package broadcast
