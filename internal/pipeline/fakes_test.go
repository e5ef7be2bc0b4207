package pipeline

import (
	"context"
	"fmt"

	"github.com/jump-triage/conductor/internal/adapter/helpdesk"
	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/adapter/llm"
	"github.com/jump-triage/conductor/internal/model"
)

type fakeHelpdesk struct {
	conversation helpdesk.Conversation
	operators    []model.Operator
	replies      []string
}

func (f *fakeHelpdesk) GetConversation(ctx context.Context, id string) (helpdesk.Conversation, error) {
	return f.conversation, nil
}

func (f *fakeHelpdesk) GetParticipatingOperators(ctx context.Context, conversationID string) ([]model.Operator, error) {
	return f.operators, nil
}

func (f *fakeHelpdesk) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	f.replies = append(f.replies, conversationID+":"+body)
	return nil
}

type updateCall struct {
	trackerID string
	patch     knowledgebase.TicketPatch
}

type fakeKnowledgeBase struct {
	tickets     []model.Ticket
	nextTicket  model.Ticket
	createCalls int
	updateCalls []updateCall

	// failUpdatesRemaining, when > 0, makes the next N UpdateTicket calls
	// fail; used to simulate and then recover from a step-3 failure.
	failUpdatesRemaining int

	byTrackerID map[string]model.Ticket
}

func (f *fakeKnowledgeBase) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	return f.tickets, nil
}

func (f *fakeKnowledgeBase) GetTicket(ctx context.Context, trackerID string) (model.Ticket, error) {
	if f.byTrackerID != nil {
		if t, ok := f.byTrackerID[trackerID]; ok {
			return t, nil
		}
	}
	return model.Ticket{}, fmt.Errorf("ticket not found: %s", trackerID)
}

func (f *fakeKnowledgeBase) CreateTicket(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	f.createCalls++
	created := f.nextTicket
	created.Title = t.Title
	created.Summary = t.Summary
	created.LinkedConversations = t.LinkedConversations
	return created, nil
}

func (f *fakeKnowledgeBase) UpdateTicket(ctx context.Context, trackerID string, patch knowledgebase.TicketPatch) (model.Ticket, error) {
	f.updateCalls = append(f.updateCalls, updateCall{trackerID: trackerID, patch: patch})
	if f.failUpdatesRemaining > 0 {
		f.failUpdatesRemaining--
		return model.Ticket{}, fmt.Errorf("simulated remote failure")
	}

	result := f.currentTicket(trackerID)
	if patch.LinkedConversations != nil {
		result.LinkedConversations = *patch.LinkedConversations
	}
	if patch.ChatChannel != nil {
		result.ChatChannel = *patch.ChatChannel
	}
	if patch.Title != nil {
		result.Title = *patch.Title
	}
	return result, nil
}

func (f *fakeKnowledgeBase) currentTicket(trackerID string) model.Ticket {
	for _, t := range f.tickets {
		if t.TrackerID == trackerID {
			return t
		}
	}
	return model.Ticket{TrackerID: trackerID}
}

func (f *fakeKnowledgeBase) GetDoneProperty(ctx context.Context, trackerID string) (bool, error) {
	return false, nil
}

type channelCall struct {
	channelID string
	userIDs   []string
}

type fakeChat struct {
	nextChannel    model.ChannelInfo
	createCalls    int
	members        []model.ChatUser
	users          []model.ChatUser
	invites        []channelCall
	topics         map[string]string
}

func (f *fakeChat) CreateChannel(ctx context.Context, name string) (model.ChannelInfo, error) {
	f.createCalls++
	return f.nextChannel, nil
}

func (f *fakeChat) ListChannelMembers(ctx context.Context, channelID string) ([]model.ChatUser, error) {
	return f.members, nil
}

func (f *fakeChat) ListAllUsers(ctx context.Context) ([]model.ChatUser, error) {
	return f.users, nil
}

func (f *fakeChat) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	f.invites = append(f.invites, channelCall{channelID: channelID, userIDs: userIDs})
	return nil
}

func (f *fakeChat) SetChannelTopic(ctx context.Context, channelID, text string) error {
	if f.topics == nil {
		f.topics = make(map[string]string)
	}
	f.topics[channelID] = text
	return nil
}

func (f *fakeChat) PostMessage(ctx context.Context, channelID, text string) error {
	return nil
}

type fakeLLM struct {
	decision model.AIDecision
}

func (f *fakeLLM) FindOrCreateTicket(ctx context.Context, candidates []model.Ticket, messageBody string, conversation llm.Conversation) (model.AIDecision, error) {
	return f.decision, nil
}
