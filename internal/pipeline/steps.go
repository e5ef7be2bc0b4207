package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/adapter/llm"
	"github.com/jump-triage/conductor/internal/apperr"
	"github.com/jump-triage/conductor/internal/model"
)

// runCheckExistingTickets lists every tracker ticket so ai_analysis has
// a full candidate set to choose from (spec §4.3 step 1).
func runCheckExistingTickets(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	tickets, err := a.KnowledgeBase.ListTickets(ctx)
	if err != nil {
		return model.StepResult{}, err
	}
	return model.TicketsResult(tickets), nil
}

// runAIAnalysis asks the LLM oracle to pick an existing ticket or
// propose a new one (spec §4.3 step 2). The pipeline trusts the
// decision as-is and does not re-validate it beyond the adapter's own
// candidate-membership check.
func runAIAnalysis(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	candidates, ok := req.resultOf(CheckExistingTickets)
	tickets, _ := candidates.AsTickets()
	if !ok {
		tickets = nil
	}

	conv, err := a.Helpdesk.GetConversation(ctx, req.SourceConversationID)
	if err != nil {
		return model.StepResult{}, err
	}

	decision, err := a.LLM.FindOrCreateTicket(ctx, tickets, req.MessageBody, llm.Conversation{
		ConversationID: conv.ID,
		URL:            conv.URL,
		Body:           conv.Body,
	})
	if err != nil {
		return model.StepResult{}, err
	}
	return model.DecisionResult(decision), nil
}

// runCreateOrUpdateTracker attaches the source conversation to the
// decided ticket: either appending its URL to an existing ticket's
// linked_conversations, or creating a brand new tracker record (spec
// §4.3 step 3).
func runCreateOrUpdateTracker(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	decisionResult, ok := req.resultOf(AIAnalysis)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("ai_analysis", "missing result for create_or_update_tracker")
	}
	decision, _ := decisionResult.AsDecision()

	if existing, ok := decision.Existing(); ok {
		if existing.HasConversation(req.SourceConversationURL) {
			return model.TicketResult(existing), nil
		}
		updated := existing.WithAddedConversation(req.SourceConversationURL)
		linked := updated.LinkedConversations
		ticket, err := a.KnowledgeBase.UpdateTicket(ctx, existing.TrackerID, knowledgebase.TicketPatch{
			LinkedConversations: &linked,
		})
		if err != nil {
			return model.StepResult{}, err
		}
		return model.TicketResult(ticket), nil
	}

	spec, _ := decision.New()
	ticket, err := a.KnowledgeBase.CreateTicket(ctx, model.Ticket{
		Title:               spec.Title,
		Summary:             spec.Summary,
		LinkedConversations: req.SourceConversationURL,
	})
	if err != nil {
		return model.StepResult{}, err
	}
	return model.TicketResult(ticket), nil
}

// runMaybeCreateChatChannel either reuses the channel already linked to
// an existing ticket, or provisions a new one for a freshly created
// ticket (spec §4.3 step 4). Reusing an existing channel makes no
// remote call.
func runMaybeCreateChatChannel(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	decisionResult, ok := req.resultOf(AIAnalysis)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("ai_analysis", "missing result for maybe_create_chat_channel")
	}
	decision, _ := decisionResult.AsDecision()

	trackerResult, ok := req.resultOf(CreateOrUpdateTracker)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("create_or_update_tracker", "missing result for maybe_create_chat_channel")
	}
	ticket, _ := trackerResult.AsTicket()

	if _, isExisting := decision.Existing(); isExisting {
		if ticket.ChatChannel == "" {
			return model.ChannelResult(model.ChannelInfo{}), nil
		}
		channelID, ok := extractChannelID(ticket.ChatChannel)
		if !ok {
			return model.StepResult{}, apperr.ParseFailure("chat", "unrecognized chat_channel value: "+ticket.ChatChannel)
		}
		return model.ChannelResult(model.ChannelInfo{ChannelID: channelID, URL: ticket.ChatChannel}), nil
	}

	spec, _ := decision.New()
	name := strings.ToLower(fmt.Sprintf("%s-%s", ticket.TicketID, spec.Slug))
	channel, err := a.Chat.CreateChannel(ctx, name)
	if err != nil {
		return model.StepResult{}, err
	}
	return model.ChannelResult(channel), nil
}

// runMaybeUpdateTrackerWithChat writes the channel URL back onto the
// tracker record, skipped when it is already current (spec §4.3 step
// 5).
func runMaybeUpdateTrackerWithChat(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	trackerResult, ok := req.resultOf(CreateOrUpdateTracker)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("create_or_update_tracker", "missing result for maybe_update_tracker_with_chat")
	}
	ticket, _ := trackerResult.AsTicket()

	channelResult, ok := req.resultOf(MaybeCreateChatChannel)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("maybe_create_chat_channel", "missing result for maybe_update_tracker_with_chat")
	}
	channel, _ := channelResult.AsChannel()

	if channel.URL == "" || channel.URL == ticket.ChatChannel {
		return model.TicketResult(ticket), nil
	}

	url := channel.URL
	updated, err := a.KnowledgeBase.UpdateTicket(ctx, ticket.TrackerID, knowledgebase.TicketPatch{ChatChannel: &url})
	if err != nil {
		return model.StepResult{}, err
	}
	return model.TicketResult(updated), nil
}

// runAddOperatorsToChat invites every helpdesk operator who participated
// in the source conversation and who can be matched to a chat account,
// and sets the channel topic to the tracker URL for freshly created
// tickets (spec §4.3 step 6).
func runAddOperatorsToChat(ctx context.Context, a *Adapters, req *Request) (model.StepResult, error) {
	decisionResult, ok := req.resultOf(AIAnalysis)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("ai_analysis", "missing result for add_operators_to_chat")
	}
	decision, _ := decisionResult.AsDecision()

	channelResult, ok := req.resultOf(MaybeCreateChatChannel)
	if !ok {
		return model.StepResult{}, apperr.InvalidInput("maybe_create_chat_channel", "missing result for add_operators_to_chat")
	}
	channel, _ := channelResult.AsChannel()
	if channel.ChannelID == "" {
		return model.UnitResult(), nil
	}

	operators, err := a.Helpdesk.GetParticipatingOperators(ctx, req.SourceConversationID)
	if err != nil {
		return model.StepResult{}, err
	}
	chatUsers, err := a.Chat.ListAllUsers(ctx)
	if err != nil {
		return model.StepResult{}, err
	}
	matched := a.UserMatcher(operators, chatUsers)

	if _, isExisting := decision.Existing(); isExisting {
		members, err := a.Chat.ListChannelMembers(ctx, channel.ChannelID)
		if err != nil {
			return model.StepResult{}, err
		}
		already := make(map[string]bool, len(members))
		for _, m := range members {
			already[m.ID] = true
		}
		var targets []string
		for _, id := range matched {
			if !already[id] {
				targets = append(targets, id)
			}
		}
		if len(targets) > 0 {
			if err := a.Chat.InviteUsers(ctx, channel.ChannelID, targets); err != nil {
				return model.StepResult{}, err
			}
		}
		return model.UnitResult(), nil
	}

	if err := a.Chat.InviteUsers(ctx, channel.ChannelID, matched); err != nil {
		return model.StepResult{}, err
	}

	trackerResult, ok := req.resultOf(CreateOrUpdateTracker)
	if ok {
		ticket, _ := trackerResult.AsTicket()
		if ticket.TrackerURL != "" {
			if err := a.Chat.SetChannelTopic(ctx, channel.ChannelID, ticket.TrackerURL); err != nil {
				return model.StepResult{}, err
			}
		}
	}
	return model.UnitResult(), nil
}

// extractChannelID pulls the raw channel id back out of a stored
// chat_channel value, which may be a raw id or a full archive URL
// (mirrors internal/urlref's extractors for the tracker's chat_channel
// field specifically, spec §6).
func extractChannelID(chatChannel string) (string, bool) {
	if !strings.Contains(chatChannel, "://") {
		return chatChannel, true
	}
	parts := strings.Split(strings.TrimRight(chatChannel, "/"), "/")
	for i, p := range parts {
		if p == "archives" && i+1 < len(parts) {
			return parts[i+1], true
		}
	}
	return "", false
}

