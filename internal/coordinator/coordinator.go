// Package coordinator owns the in-memory registry of in-flight Requests
// and the best-effort subscription bus that lets callers watch a
// Request's progress live. Grounded on the teacher's pkg/session/manager.go
// (map[string]*T behind sync.RWMutex, Create/Get/List) and pkg/events'
// non-blocking broadcast discipline (pkg/events/manager.go's Broadcast),
// reimplemented over plain Go channels instead of WebSocket+Postgres
// NOTIFY, which belongs to the out-of-scope progress-UI server.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jump-triage/conductor/internal/pipeline"
)

// subscriberBufferSize bounds how many queued updates a slow subscriber
// can fall behind by before the oldest is dropped. Delivery is always
// best-effort: a stalled subscriber must never block step execution.
const subscriberBufferSize = 16

// Registry tracks every Request registered and not yet removed by Sweep,
// one goroutine per Request (spec §5), plus per-Request and global
// subscription channels.
type Registry struct {
	engine *pipeline.Engine

	mu       sync.RWMutex
	requests map[string]*pipeline.Request

	subMu      sync.RWMutex
	subs       map[string]map[string]chan pipeline.Request // requestID -> subscriberID -> channel
	globalSubs map[string]chan pipeline.Request             // subscriberID -> channel
}

// NewRegistry constructs a Registry and wires itself as the engine's
// OnChange callback, so every step/status transition is broadcast
// automatically.
func NewRegistry(engine *pipeline.Engine) *Registry {
	r := &Registry{
		engine:     engine,
		requests:   make(map[string]*pipeline.Request),
		subs:       make(map[string]map[string]chan pipeline.Request),
		globalSubs: make(map[string]chan pipeline.Request),
	}
	engine.OnChange = r.broadcast
	return r
}

// Register creates a new Request for an inbound conversation and starts
// it running in its own goroutine (spec §5: one goroutine per Request).
// It returns immediately with the pending Request; callers observe
// progress via Subscribe/SubscribeAll or by polling Get.
func (r *Registry) Register(ctx context.Context, sourceConversationID, sourceConversationURL, messageBody string) *pipeline.Request {
	req := pipeline.NewRequest(uuid.NewString(), sourceConversationID, sourceConversationURL, messageBody)

	r.mu.Lock()
	r.requests[req.ID] = req
	r.mu.Unlock()

	go func() {
		_ = r.engine.Run(ctx, req)
	}()

	return req
}

// Get returns the live Request for id, if known.
func (r *Registry) Get(id string) (*pipeline.Request, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	return req, ok
}

// List returns a snapshot of every known Request.
func (r *Registry) List() []pipeline.Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]pipeline.Request, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Clone())
	}
	return out
}

// RetryStep resets and re-runs step t (and every step after it) for the
// given Request, in its own goroutine (spec §4.3 retry_step).
func (r *Registry) RetryStep(ctx context.Context, requestID string, t pipeline.StepType) error {
	req, ok := r.Get(requestID)
	if !ok {
		return fmt.Errorf("request not found: %s", requestID)
	}
	go func() {
		_ = r.engine.RetryStep(ctx, req, t)
	}()
	return nil
}

// RetryAll resets and re-runs every step for the given Request, in its
// own goroutine (spec §4.3 retry_all).
func (r *Registry) RetryAll(ctx context.Context, requestID string) error {
	req, ok := r.Get(requestID)
	if !ok {
		return fmt.Errorf("request not found: %s", requestID)
	}
	go func() {
		_ = r.engine.RetryAll(ctx, req)
	}()
	return nil
}

// Subscribe returns a channel delivering every update to one Request.
// The returned subscriberID must be passed to Unsubscribe to release the
// channel.
func (r *Registry) Subscribe(requestID string) (subscriberID string, updates <-chan pipeline.Request, ok bool) {
	if _, found := r.Get(requestID); !found {
		return "", nil, false
	}

	subscriberID = uuid.NewString()
	ch := make(chan pipeline.Request, subscriberBufferSize)

	r.subMu.Lock()
	if r.subs[requestID] == nil {
		r.subs[requestID] = make(map[string]chan pipeline.Request)
	}
	r.subs[requestID][subscriberID] = ch
	r.subMu.Unlock()

	return subscriberID, ch, true
}

// Unsubscribe releases a per-Request subscription.
func (r *Registry) Unsubscribe(requestID, subscriberID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if subs, ok := r.subs[requestID]; ok {
		if ch, ok := subs[subscriberID]; ok {
			close(ch)
			delete(subs, subscriberID)
		}
		if len(subs) == 0 {
			delete(r.subs, requestID)
		}
	}
}

// SubscribeAll returns a channel delivering updates for every Request
// (spec §4.4's permitted global subscription channel).
func (r *Registry) SubscribeAll() (subscriberID string, updates <-chan pipeline.Request) {
	subscriberID = uuid.NewString()
	ch := make(chan pipeline.Request, subscriberBufferSize)

	r.subMu.Lock()
	r.globalSubs[subscriberID] = ch
	r.subMu.Unlock()

	return subscriberID, ch
}

// UnsubscribeAll releases a global subscription.
func (r *Registry) UnsubscribeAll(subscriberID string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if ch, ok := r.globalSubs[subscriberID]; ok {
		close(ch)
		delete(r.globalSubs, subscriberID)
	}
}

// broadcast delivers req to every per-Request and global subscriber.
// Delivery is non-blocking: a subscriber that isn't keeping up has its
// oldest queued update dropped to make room, mirroring the teacher's
// "writes must never block the broadcaster" rule in events.Broadcast.
func (r *Registry) broadcast(req pipeline.Request) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, ch := range r.subs[req.ID] {
		deliver(ch, req)
	}
	for _, ch := range r.globalSubs {
		deliver(ch, req)
	}
}

func deliver(ch chan pipeline.Request, req pipeline.Request) {
	select {
	case ch <- req:
		return
	default:
	}
	// Full: drop the oldest queued update and retry once.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- req:
	default:
	}
}

// Sweep removes every terminal (completed or failed) Request last
// updated before now minus retention, along with any subscriptions still
// registered for it (spec §3 "Lifetimes"). It returns the number of
// Requests removed. Grounded on the teacher's pkg/cleanup.Service retention
// sweep, reduced to a single callable function rather than a background
// ticker loop — the caller decides the schedule.
func (r *Registry) Sweep(now time.Time, retention time.Duration) int {
	r.mu.Lock()
	var expired []string
	for id, req := range r.requests {
		status := req.Status()
		if status != pipeline.RequestCompleted && status != pipeline.RequestFailed {
			continue
		}
		if now.Sub(req.UpdatedAt()) >= retention {
			expired = append(expired, id)
			delete(r.requests, id)
		}
	}
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	r.subMu.Lock()
	for _, id := range expired {
		for _, ch := range r.subs[id] {
			close(ch)
		}
		delete(r.subs, id)
	}
	r.subMu.Unlock()

	return len(expired)
}
