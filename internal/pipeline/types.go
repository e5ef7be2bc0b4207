// Package pipeline runs the six-step request pipeline (spec §4.3):
// reacting to a helpdesk conversation, attaching or creating a tracker
// ticket, provisioning a chat channel, and inviting operators. Grounded
// on the teacher's pkg/session/types.go: a mutex-guarded, snapshot-able
// state object plus a small state machine, generalized from a single
// chat session to a multi-step Request.
package pipeline

import (
	"sync"
	"time"

	"github.com/jump-triage/conductor/internal/model"
)

// StepType names one of the six canonical pipeline steps, always
// executed in this order.
type StepType string

const (
	CheckExistingTickets   StepType = "check_existing_tickets"
	AIAnalysis             StepType = "ai_analysis"
	CreateOrUpdateTracker  StepType = "create_or_update_tracker"
	MaybeCreateChatChannel StepType = "maybe_create_chat_channel"
	MaybeUpdateTrackerChat StepType = "maybe_update_tracker_with_chat"
	AddOperatorsToChat     StepType = "add_operators_to_chat"
)

// StepOrder returns the canonical step execution order.
func StepOrder() []StepType {
	return []StepType{
		CheckExistingTickets,
		AIAnalysis,
		CreateOrUpdateTracker,
		MaybeCreateChatChannel,
		MaybeUpdateTrackerChat,
		AddOperatorsToChat,
	}
}

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// RequestStatus is the lifecycle state of the overall Request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestRunning   RequestStatus = "running"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// Step is a single step's state: its result on success, or a formatted
// error string on failure. Never both.
type Step struct {
	Type        StepType
	Status      StepStatus
	Result      model.StepResult
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (s Step) clone() Step {
	clone := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		clone.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		clone.CompletedAt = &t
	}
	return clone
}

// Request is one inbound conversation moving through the pipeline. The
// exported fields are set once by NewRequest and never changed; the
// mutable state (status, updatedAt, steps) is reached only through its
// methods, which are safe for concurrent use (spec §4.4: the coordinator's registry is read from subscriber
// goroutines while the engine mutates the running request).
type Request struct {
	ID                    string
	SourceConversationID  string
	SourceConversationURL string
	MessageBody           string
	CreatedAt             time.Time

	mu        sync.RWMutex
	status    RequestStatus
	updatedAt time.Time
	steps     map[StepType]Step
}

// NewRequest creates a fresh Request with all six steps pending.
func NewRequest(id, sourceConversationID, sourceConversationURL, messageBody string) *Request {
	now := time.Now()
	steps := make(map[StepType]Step, len(StepOrder()))
	for _, t := range StepOrder() {
		steps[t] = Step{Type: t, Status: StepPending}
	}
	return &Request{
		ID:                    id,
		SourceConversationID:  sourceConversationID,
		SourceConversationURL: sourceConversationURL,
		MessageBody:           messageBody,
		CreatedAt:             now,
		status:                RequestPending,
		updatedAt:             now,
		steps:                 steps,
	}
}

// Status returns the request's current status (thread-safe).
func (r *Request) Status() RequestStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// UpdatedAt returns the last time any step or the overall status
// changed (thread-safe). The coordinator's Sweep compares it against
// its retention window.
func (r *Request) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// Step returns a snapshot copy of one step's state.
func (r *Request) Step(t StepType) Step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.steps[t].clone()
}

// Steps returns a snapshot copy of every step's state, in canonical
// order.
func (r *Request) Steps() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Step, 0, len(StepOrder()))
	for _, t := range StepOrder() {
		out = append(out, r.steps[t].clone())
	}
	return out
}

// Clone returns a deep, immutable snapshot of the whole request for
// safe reading outside its lock (spec §4.4 subscription payloads).
func (r *Request) Clone() Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := Request{
		ID:                    r.ID,
		SourceConversationID:  r.SourceConversationID,
		SourceConversationURL: r.SourceConversationURL,
		MessageBody:           r.MessageBody,
		CreatedAt:             r.CreatedAt,
		status:                r.status,
		updatedAt:             r.updatedAt,
		steps:                 make(map[StepType]Step, len(r.steps)),
	}
	for t, s := range r.steps {
		clone.steps[t] = s.clone()
	}
	return clone
}

func (r *Request) beginStep(t StepType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.steps[t] = Step{Type: t, Status: StepRunning, StartedAt: &now}
	r.status = RequestRunning
	r.updatedAt = now
}

func (r *Request) completeStep(t StepType, result model.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	step := r.steps[t]
	step.Status = StepCompleted
	step.Result = result
	step.CompletedAt = &now
	r.steps[t] = step
	r.updatedAt = now
}

func (r *Request) failStep(t StepType, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	step := r.steps[t]
	step.Status = StepFailed
	step.Error = errMsg
	step.CompletedAt = &now
	r.steps[t] = step
	r.updatedAt = now
}

func (r *Request) setStatus(status RequestStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.updatedAt = time.Now()
}

// resetFrom marks t and every later step (in canonical order) pending,
// discarding their prior results. Earlier steps are untouched. Used by
// RetryStep (spec §4.3 retry_step) and, with t equal to the first step,
// by RetryAll.
func (r *Request) resetFrom(t StepType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := StepOrder()
	reset := false
	for _, st := range order {
		if st == t {
			reset = true
		}
		if reset {
			r.steps[st] = Step{Type: st, Status: StepPending}
		}
	}
	r.status = RequestPending
	r.updatedAt = time.Now()
}

// resultOf returns the stored result of a completed step, if any.
func (r *Request) resultOf(t StepType) (model.StepResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	step, ok := r.steps[t]
	if !ok || step.Status != StepCompleted {
		return model.StepResult{}, false
	}
	return step.Result, true
}
