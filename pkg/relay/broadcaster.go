package relay

// Broadcaster delivers relay messages to every subscriber of a handler,
// including the publisher's own process.
type Broadcaster interface {
	// Publish broadcasts a message to all subscribers of its handler.
	Publish(msg Message) error
	// Subscribe registers a callback for every message published under the
	// handler name. The returned function cancels the subscription.
	Subscribe(handler string, fn func(Message)) (func(), error)
}
