package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jump-triage/conductor/internal/adapter/chat"
	"github.com/jump-triage/conductor/internal/adapter/helpdesk"
	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/adapter/llm"
	"github.com/jump-triage/conductor/internal/apperr"
	"github.com/jump-triage/conductor/internal/model"
	"github.com/jump-triage/conductor/internal/usermatcher"
)

// Adapters bundles every external dependency a Request's steps call
// into. UserMatcher defaults to usermatcher.Match but is overridable for
// tests.
type Adapters struct {
	Helpdesk      helpdesk.Client
	KnowledgeBase knowledgebase.Client
	Chat          chat.Client
	LLM           llm.Client
	UserMatcher   func(operators []model.Operator, chatUsers []model.ChatUser) []string
}

type stepFunc func(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error)

var stepFuncs = map[StepType]stepFunc{
	CheckExistingTickets:   runCheckExistingTickets,
	AIAnalysis:             runAIAnalysis,
	CreateOrUpdateTracker:  runCreateOrUpdateTracker,
	MaybeCreateChatChannel: runMaybeCreateChatChannel,
	MaybeUpdateTrackerChat: runMaybeUpdateTrackerWithChat,
	AddOperatorsToChat:     runAddOperatorsToChat,
}

// Engine executes Requests against a fixed set of Adapters.
type Engine struct {
	Adapters    *Adapters
	StepTimeout time.Duration
	// OnChange, when set, is called after every step/status transition
	// with a snapshot of the request. The coordinator package wires this
	// to its broadcast so subscribers see live progress; it is never
	// required for correctness.
	OnChange func(Request)
}

// NewEngine constructs an Engine, defaulting UserMatcher to
// usermatcher.Match and StepTimeout to 60s (spec §5) when unset.
func NewEngine(adapters *Adapters) *Engine {
	if adapters.UserMatcher == nil {
		adapters.UserMatcher = usermatcher.Match
	}
	return &Engine{Adapters: adapters, StepTimeout: 60 * time.Second}
}

func (e *Engine) notify(req *Request) {
	if e.OnChange == nil {
		return
	}
	snapshot := req.Clone()
	e.OnChange(snapshot)
}

// Run executes every pending step of req in canonical order, stopping
// at the first failure (spec §4.3 execution rules). Steps already
// completed are skipped, which is what makes Run safe to call again
// after RetryStep or RetryAll resets part of the request. Run itself
// never returns a Go error for a step failure: the failure is recorded
// on the Request and observable via Steps()/Status().
func (e *Engine) Run(ctx context.Context, req *Request) error {
	for _, t := range StepOrder() {
		step := req.Step(t)

		switch step.Status {
		case StepCompleted:
			continue
		case StepFailed:
			req.setStatus(RequestFailed)
			e.notify(req)
			return nil
		}

		req.beginStep(t)
		e.notify(req)

		result, err := e.executeStep(ctx, t, req)
		if err != nil {
			req.failStep(t, formatStepError(err))
			e.notify(req)
			req.setStatus(RequestFailed)
			e.notify(req)
			return nil
		}

		req.completeStep(t, result)
		e.notify(req)
	}

	req.setStatus(RequestCompleted)
	e.notify(req)
	return nil
}

// executeStep dispatches to the step's implementation under a bounded
// context and recovers from any panic, treating it like any other step
// failure (spec §7: the engine catches every exception and stores it as
// the step's error rather than crashing the process).
func (e *Engine) executeStep(ctx context.Context, t StepType, req *Request) (result model.StepResult, err error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.StepTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in step %s: %v", t, r)
		}
	}()

	fn, ok := stepFuncs[t]
	if !ok {
		return model.StepResult{}, apperr.MissingImplementation(string(t))
	}

	result, err = fn(stepCtx, e.Adapters, req)
	if err != nil && stepCtx.Err() != nil {
		return model.StepResult{}, apperr.Timeout(string(t))
	}
	return result, err
}

func formatStepError(err error) string {
	if appErr, ok := apperr.As(err); ok {
		return appErr.Error()
	}
	return err.Error()
}

// RetryStep resets t and every later step to pending, then re-runs the
// request (spec §4.3 retry_step). Steps before t keep their prior
// results untouched.
func (e *Engine) RetryStep(ctx context.Context, req *Request, t StepType) error {
	req.resetFrom(t)
	e.notify(req)
	return e.Run(ctx, req)
}

// RetryAll resets every step to pending and re-runs the request from
// the beginning (spec §4.3 retry_all).
func (e *Engine) RetryAll(ctx context.Context, req *Request) error {
	req.resetFrom(StepOrder()[0])
	e.notify(req)
	return e.Run(ctx, req)
}
