package relay

import "sync"

// Bus is an in-process Broadcaster for single-node deployments and tests.
// Delivery is asynchronous, matching the detached nature of a real broadcast
// transport.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]func(Message)
	next int
}

var _ Broadcaster = (*Bus)(nil)

// NewBus creates an empty in-process bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(Message))}
}

// Publish delivers the message to every subscriber of its handler on
// separate goroutines.
func (b *Bus) Publish(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs[msg.Handler] {
		go fn(msg)
	}
	return nil
}

// Subscribe registers a callback for a handler name.
func (b *Bus) Subscribe(handler string, fn func(Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[handler] == nil {
		b.subs[handler] = make(map[int]func(Message))
	}
	id := b.next
	b.next++
	b.subs[handler][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[handler], id)
	}, nil
}
