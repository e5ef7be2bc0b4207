// Package donewebhook decodes and dispatches the knowledge base's
// completion webhook. It is deliberately transport-free: Handle takes
// and returns plain Go values, consistent with the teacher's separation
// of pkg/services (business logic) from pkg/api (the gin transport
// layer that calls it) — here the transport layer itself is out of
// scope, so there is no net/http import anywhere in this package.
package donewebhook

import (
	"context"
	"time"

	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/donenotifier"
)

// pageUpdatedType is the only event type Handle reacts to.
const pageUpdatedType = "page.properties_updated"

// Payload is the decoded webhook body.
type Payload struct {
	Type   string `json:"type"`
	Entity struct {
		ID string `json:"id"`
	} `json:"entity"`
	Data struct {
		UpdatedProperties []string `json:"updated_properties"`
	} `json:"data"`
	Timestamp     time.Time `json:"timestamp"`
	AttemptNumber int       `json:"attempt_number"`
	Challenge     *string   `json:"challenge,omitempty"`
}

// Response is the value a caller's transport layer should serialize
// back to the knowledge base.
type Response struct {
	Challenge *string `json:"challenge,omitempty"`
	Status    string  `json:"status,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Deps bundles the collaborators Handle needs.
type Deps struct {
	KnowledgeBase knowledgebase.Client
	Chat          donenotifier.ChatPoster
	Helpdesk      donenotifier.ConversationReplier

	// DonePropertyID is the tracked "done" checkbox property identifier
	// that must appear in Data.UpdatedProperties for this event to be
	// acted on (spec §6).
	DonePropertyID string

	// ChecksumHeuristicFallback enables the source system's
	// non-deterministic fallback for resolving checkbox state when the
	// knowledge-base property read fails (spec §9 open question:
	// implementers SHOULD NOT port this heuristic). Defaults to
	// disabled; a product owner must explicitly opt in.
	ChecksumHeuristicFallback bool
}

// Handle decodes one webhook delivery and, if it signals a ticket being
// marked done, notifies the chat channel and linked conversations.
func Handle(ctx context.Context, deps Deps, payload Payload) (Response, error) {
	if payload.Challenge != nil {
		return Response{Challenge: payload.Challenge}, nil
	}

	if payload.Type != pageUpdatedType || !containsString(payload.Data.UpdatedProperties, deps.DonePropertyID) {
		return Response{Status: "ok", Message: "ignored: not a tracked done-property update"}, nil
	}

	done, err := resolveDoneState(ctx, deps, payload)
	if err != nil {
		return Response{}, err
	}
	if !done {
		return Response{Status: "ok", Message: "property updated but not checked"}, nil
	}

	ticket, err := deps.KnowledgeBase.GetTicket(ctx, payload.Entity.ID)
	if err != nil {
		return Response{}, err
	}

	report := donenotifier.NotifyDone(ctx, deps.Chat, deps.Helpdesk, ticket)
	if report.HasFailures() {
		return Response{Status: "ok", Message: "notified with partial failures: " + report.String()}, nil
	}
	return Response{Status: "ok", Message: "notified"}, nil
}

// resolveDoneState resolves the checkbox's new value. The preferred
// path reads the authoritative property from the knowledge base;
// ChecksumHeuristicFallback gates the source system's timestamp/
// attempt-number heuristic for when that call fails (spec §6.2/§9).
func resolveDoneState(ctx context.Context, deps Deps, payload Payload) (bool, error) {
	checked, err := deps.KnowledgeBase.GetDoneProperty(ctx, payload.Entity.ID)
	if err == nil {
		return checked, nil
	}
	if !deps.ChecksumHeuristicFallback {
		return false, err
	}
	return heuristicDoneState(payload), nil
}

// heuristicDoneState is the source system's acknowledged-non-deterministic
// fallback: retries are treated as checked, otherwise checked-ness is
// derived from the timestamp's sub-second component. Never used unless
// ChecksumHeuristicFallback is explicitly enabled.
func heuristicDoneState(payload Payload) bool {
	if payload.AttemptNumber > 1 {
		return true
	}
	return payload.Timestamp.Nanosecond()%2 == 0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
