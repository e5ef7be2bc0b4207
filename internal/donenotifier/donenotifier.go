// Package donenotifier posts a completion notice to a ticket's chat
// channel and every linked helpdesk conversation once that ticket is
// marked done. Grounded on the teacher's pkg/services small-service
// shape (no error returned to the caller, a typed per-target Failure for
// every delivery problem) and pkg/slack/fingerprint.go's discipline of keeping
// string normalization/extraction helpers small and separate — here
// that role is filled by internal/urlref.
package donenotifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jump-triage/conductor/internal/model"
	"github.com/jump-triage/conductor/internal/urlref"
)

// ChatPoster is the one chat capability NotifyDone needs. Both
// chat.Client and narrower test doubles satisfy it structurally.
type ChatPoster interface {
	PostMessage(ctx context.Context, channelID, text string) error
}

// ConversationReplier is the one helpdesk capability NotifyDone needs.
// Both helpdesk.Client and narrower test doubles satisfy it
// structurally.
type ConversationReplier interface {
	ReplyToConversation(ctx context.Context, conversationID, body string) error
}

// Target identifies one delivery attempt: either the chat channel or one
// linked helpdesk conversation.
type Target struct {
	Kind string // "chat" or "conversation"
	ID   string
}

// Failure records one target's delivery error without aborting the rest
// (spec §4.5: "per-target failures are logged and do not abort sibling
// deliveries").
type Failure struct {
	Target Target
	Err    error
}

// Report is the outcome of NotifyDone: which targets were attempted and
// which, if any, failed. NotifyDone's own return value is always nil —
// Report is how a caller inspects partial failures if it cares to.
type Report struct {
	Attempted []Target
	Failures  []Failure
}

func messageFor(ticketID string) string {
	return fmt.Sprintf("Ticket %s has been marked as Done.", ticketID)
}

// NotifyDone posts the completion message to t's chat channel and every
// conversation listed in t.LinkedConversations. It never returns a
// non-nil error: every failure is logged via log/slog and folded into
// the returned Report, matching the teacher's log-and-continue delivery
// loop in events.ConnectionManager.Broadcast.
func NotifyDone(ctx context.Context, chatClient ChatPoster, helpdeskClient ConversationReplier, t model.Ticket) *Report {
	report := &Report{}

	if t.ChatChannel == "" {
		slog.Warn("done notification: ticket has no chat channel, skipping", "ticket_id", t.TicketID)
	} else {
		target := Target{Kind: "chat", ID: t.ChatChannel}
		report.Attempted = append(report.Attempted, target)
		channelID, ok := urlref.ExtractChannelID(t.ChatChannel)
		if !ok {
			err := fmt.Errorf("invalid_channel_url: %s", t.ChatChannel)
			slog.Warn("done notification: failed to post to chat channel", "ticket_id", t.TicketID, "channel", t.ChatChannel, "error", err)
			report.Failures = append(report.Failures, Failure{Target: target, Err: err})
		} else if err := chatClient.PostMessage(ctx, channelID, messageFor(t.TicketID)); err != nil {
			slog.Warn("done notification: failed to post to chat channel", "ticket_id", t.TicketID, "channel", t.ChatChannel, "error", err)
			report.Failures = append(report.Failures, Failure{Target: target, Err: err})
		}
	}

	for _, conv := range t.LinkedConversationList() {
		target := Target{Kind: "conversation", ID: conv}
		report.Attempted = append(report.Attempted, target)
		id := urlref.ExtractConversationID(conv)
		if err := helpdeskClient.ReplyToConversation(ctx, id, messageFor(t.TicketID)); err != nil {
			slog.Warn("done notification: failed to reply to conversation", "ticket_id", t.TicketID, "conversation", conv, "error", err)
			report.Failures = append(report.Failures, Failure{Target: target, Err: err})
		}
	}

	return report
}

// HasFailures reports whether any target delivery failed.
func (r *Report) HasFailures() bool {
	return len(r.Failures) > 0
}

func (r *Report) String() string {
	if !r.HasFailures() {
		return fmt.Sprintf("delivered to %d target(s)", len(r.Attempted))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d target(s) failed: ", len(r.Failures), len(r.Attempted))
	for i, f := range r.Failures {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%s (%v)", f.Target.Kind, f.Target.ID, f.Err)
	}
	return b.String()
}
