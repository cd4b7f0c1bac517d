// Package relay proxies write operations from unprivileged actors to an
// elected privileged responder over a broadcast channel, and returns the
// responder's result to the requester.
package relay

const (
	// HandlerStore names the proxied store operation.
	HandlerStore = "storeEntry"
	// HandlerDelete names the proxied delete operation.
	HandlerDelete = "deleteEntry"

	// TypeRequest marks a message asking an elected responder to act.
	TypeRequest = "request"
	// TypeResolve marks a message carrying a responder's result back.
	TypeResolve = "resolve"
)

// Message is the broadcast envelope. Every request carries a requestId in
// Args so the matching resolve can be routed back to its waiter.
type Message struct {
	Handler string                 `json:"handlerName"`
	Type    string                 `json:"type"`
	Args    map[string]interface{} `json:"args"`
}

// RequestID extracts the correlation identifier from the message args.
func (m Message) RequestID() string {
	id, _ := m.Args["requestId"].(string)
	return id
}
