package relay

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "packstore.relay."

// NATSBroadcaster carries relay messages over NATS so separate processes
// share one proxy channel. Each handler maps to its own subject.
type NATSBroadcaster struct {
	conn *nats.Conn
}

var _ Broadcaster = (*NATSBroadcaster)(nil)

// NewNATSBroadcaster connects to the given NATS URL.
func NewNATSBroadcaster(url string) (*NATSBroadcaster, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.Name("packstore-relay"),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: connecting to NATS: %w", err)
	}
	return &NATSBroadcaster{conn: conn}, nil
}

// Publish broadcasts the message on the handler's subject as JSON.
func (b *NATSBroadcaster) Publish(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("relay: encoding message: %w", err)
	}
	return b.conn.Publish(subjectPrefix+msg.Handler, data)
}

// Subscribe registers a callback on the handler's subject. Undecodable
// messages are dropped.
func (b *NATSBroadcaster) Subscribe(handler string, fn func(Message)) (func(), error) {
	sub, err := b.conn.Subscribe(subjectPrefix+handler, func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			return
		}
		fn(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("relay: subscribing to %s: %w", handler, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close drains the underlying connection.
func (b *NATSBroadcaster) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
