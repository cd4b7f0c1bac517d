package relay

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/metrics"
)

// DefaultTimeout bounds how long a proxied request waits for a resolve
// before giving up with a nil result.
const DefaultTimeout = 6 * time.Second

// Backend executes proxied operations on behalf of a remote actor. The
// entries repository implements it.
type Backend interface {
	ProxyStore(args map[string]interface{}, actor domain.Actor) (map[string]interface{}, error)
	ProxyDelete(args map[string]interface{}, actor domain.Actor) (map[string]interface{}, error)
}

type pendingRequest struct {
	result chan map[string]interface{}
	timer  *time.Timer
}

// Channel is the proxy channel: unprivileged actors broadcast write
// requests, a single elected privileged responder executes them, and the
// result flows back keyed by request identifier. Every request resolves
// exactly once, to a result or to nil on timeout.
type Channel struct {
	bcast   Broadcaster
	actor   domain.Actor
	roster  func() []domain.Actor
	timeout time.Duration
	metrics *metrics.Metrics

	mu      sync.Mutex
	backend Backend
	pending map[string]*pendingRequest
	unsubs  []func()
}

// NewChannel creates a proxy channel for the local actor. roster reports
// the actors currently reachable on the channel; it is consulted per
// request so membership may change between requests.
func NewChannel(bcast Broadcaster, localActor domain.Actor, roster func() []domain.Actor, m *metrics.Metrics) (*Channel, error) {
	c := &Channel{
		bcast:   bcast,
		actor:   localActor,
		roster:  roster,
		timeout: DefaultTimeout,
		metrics: m,
		pending: make(map[string]*pendingRequest),
	}
	for _, handler := range []string{HandlerStore, HandlerDelete} {
		unsub, err := bcast.Subscribe(handler, c.dispatch)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.unsubs = append(c.unsubs, unsub)
	}
	return c, nil
}

// SetTimeout overrides the request timeout. Intended for tests.
func (c *Channel) SetTimeout(d time.Duration) { c.timeout = d }

// AttachBackend installs the executor for incoming requests. Without a
// backend this process never answers, only asks.
func (c *Channel) AttachBackend(b Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = b
}

// Request broadcasts a proxied operation and blocks until the elected
// responder resolves it or the timeout elapses. A nil result means the
// request went unanswered.
func (c *Channel) Request(handler string, args map[string]interface{}) map[string]interface{} {
	id := uuid.NewString()
	if args == nil {
		args = make(map[string]interface{})
	}
	args["requestId"] = id
	args["actor"] = map[string]interface{}{
		"id":   c.actor.ID,
		"role": c.actor.Role.String(),
	}

	req := &pendingRequest{result: make(chan map[string]interface{}, 1)}
	req.timer = time.AfterFunc(c.timeout, func() {
		if r := c.take(id); r != nil {
			r.result <- nil
		}
	})

	c.mu.Lock()
	c.pending[id] = req
	c.mu.Unlock()

	if err := c.bcast.Publish(Message{Handler: handler, Type: TypeRequest, Args: args}); err != nil {
		log.Printf("ERROR: Could not broadcast %s request: %v", handler, err)
		if r := c.take(id); r != nil {
			r.timer.Stop()
			c.metrics.RecordRelayRequest(handler, "error")
			return nil
		}
	}

	result := <-req.result
	if result == nil {
		c.metrics.RecordRelayRequest(handler, "timeout")
	} else {
		c.metrics.RecordRelayRequest(handler, "resolved")
	}
	return result
}

// take removes and returns a pending request, or nil if it already
// resolved. This is the single point that guarantees exactly-once delivery.
func (c *Channel) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return req
}

// dispatch routes an incoming broadcast to the responder or resolver path.
func (c *Channel) dispatch(msg Message) {
	switch msg.Type {
	case TypeRequest:
		c.respond(msg)
	case TypeResolve:
		c.resolve(msg)
	}
}

// respond executes a proxied request if and only if this process's actor is
// the elected responder, then broadcasts the resolve.
func (c *Channel) respond(msg Message) {
	elected, ok := domain.ElectResponder(c.roster())
	if !ok || elected.ID != c.actor.ID {
		return
	}

	c.mu.Lock()
	backend := c.backend
	c.mu.Unlock()
	if backend == nil {
		return
	}

	requester := parseActor(msg.Args["actor"])
	var (
		result map[string]interface{}
		err    error
	)
	switch msg.Handler {
	case HandlerStore:
		result, err = backend.ProxyStore(msg.Args, requester)
	case HandlerDelete:
		result, err = backend.ProxyDelete(msg.Args, requester)
	default:
		return
	}
	if err != nil {
		log.Printf("WARN: Proxied %s request failed: %v", msg.Handler, err)
		result = map[string]interface{}{"error": err.Error()}
	}
	if result == nil {
		result = map[string]interface{}{}
	}

	resolve := Message{
		Handler: msg.Handler,
		Type:    TypeResolve,
		Args: map[string]interface{}{
			"requestId": msg.RequestID(),
			"result":    result,
		},
	}
	if err := c.bcast.Publish(resolve); err != nil {
		log.Printf("ERROR: Could not broadcast %s resolve: %v", msg.Handler, err)
	}
}

// resolve hands a broadcast result to its waiting requester, if this
// process holds the matching pending request.
func (c *Channel) resolve(msg Message) {
	req := c.take(msg.RequestID())
	if req == nil {
		return
	}
	req.timer.Stop()
	result, _ := msg.Args["result"].(map[string]interface{})
	if result == nil {
		result = map[string]interface{}{}
	}
	req.result <- result
}

// Close cancels all subscriptions and fails any in-flight requests.
func (c *Channel) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil

	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()
	for _, req := range pending {
		req.timer.Stop()
		req.result <- nil
	}
}

// parseActor rebuilds the requesting actor from its wire shape.
func parseActor(value interface{}) domain.Actor {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return domain.Actor{}
	}
	id, _ := fields["id"].(string)
	role, _ := fields["role"].(string)
	return domain.Actor{ID: id, Role: domain.ParseRole(role)}
}
