// Package router fans inbound envelopes out to the projections.
//
// Dispatch is synchronous and single-threaded: Publish is only ever
// called from the client loop, so subscribers mutate their state
// without locking but must never block.
package router

import (
	"pokerclient/internal/protocol"
)

type Subscriber func(protocol.Envelope)

type subscription struct {
	id    int
	types map[string]bool // nil means all types
	fn    Subscriber
}

type Router struct {
	nextID int
	subs   []subscription
}

func New() *Router {
	return &Router{}
}

// Subscribe registers fn for exactly the listed event types. Each
// projection names its own allow-list, so new event types never touch
// unrelated subscribers. Returns an unsubscribe func.
func (r *Router) Subscribe(types []string, fn Subscriber) func() {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return r.add(subscription{types: allowed, fn: fn})
}

// SubscribeAll registers fn for every envelope, for system-level
// listeners like the notifications feed.
func (r *Router) SubscribeAll(fn Subscriber) func() {
	return r.add(subscription{fn: fn})
}

func (r *Router) add(s subscription) func() {
	r.nextID++
	s.id = r.nextID
	r.subs = append(r.subs, s)
	id := s.id
	return func() {
		for i, sub := range r.subs {
			if sub.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers env to every matching subscriber, in registration
// order, passing the same envelope to each.
func (r *Router) Publish(env protocol.Envelope) {
	for _, s := range r.subs {
		if s.types != nil && !s.types[env.Type] {
			continue
		}
		s.fn(env)
	}
}
