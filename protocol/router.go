package protocol

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Handler receives one decoded event together with the transport arrival
// timestamp of the raw notification.
type Handler func(evt Event, receivedAt time.Time)

// Router fans raw (role, bytes) notification pairs out to typed handlers.
// Notifications for a single role reach the handler in the order the
// transport delivered them; no ordering holds across roles.
type Router struct {
	mu       sync.Mutex
	handlers map[EndpointRole]Handler
	onError  func(*HandlerError)
}

// NewRouter creates an empty router. onError receives handler failures; a
// nil callback falls back to logging them.
func NewRouter(onError func(*HandlerError)) *Router {
	return &Router{
		handlers: make(map[EndpointRole]Handler),
		onError:  onError,
	}
}

// Subscribe registers the handler for a role. Re-subscribing replaces the
// previous handler so a notification is never delivered twice.
func (r *Router) Subscribe(role EndpointRole, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[role] = handler
}

// OnNotify decodes a raw notification and invokes the registered handler.
// Events for roles without a handler are dropped, not treated as errors.
// A panicking handler is reported and the stream keeps flowing.
func (r *Router) OnNotify(role EndpointRole, payload []byte, receivedAt time.Time) {
	r.mu.Lock()
	handler := r.handlers[role]
	r.mu.Unlock()

	if handler == nil {
		log.Printf("ROUTER: dropping unhandled notification on %s endpoint (%d bytes)", role, len(payload))
		return
	}

	evt := DecodeNotification(role, payload)
	if _, ok := evt.(*RawEvent); ok {
		log.Printf("ROUTER: malformed payload on %s endpoint, delivering raw fallback (%d bytes)", role, len(payload))
	}
	r.deliver(role, handler, evt, receivedAt)
}

func (r *Router) deliver(role EndpointRole, handler Handler, evt Event, receivedAt time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &HandlerError{Role: role, Cause: fmt.Errorf("%v", rec)}
			if r.onError != nil {
				r.onError(err)
			} else {
				log.Printf("ROUTER: %v", err)
			}
		}
	}()
	handler(evt, receivedAt)
}
