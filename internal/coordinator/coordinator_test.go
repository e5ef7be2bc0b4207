package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jump-triage/conductor/internal/adapter/chat"
	"github.com/jump-triage/conductor/internal/adapter/helpdesk"
	"github.com/jump-triage/conductor/internal/adapter/knowledgebase"
	"github.com/jump-triage/conductor/internal/adapter/llm"
	"github.com/jump-triage/conductor/internal/model"
	"github.com/jump-triage/conductor/internal/pipeline"
)

type stubHelpdesk struct{}

func (stubHelpdesk) GetConversation(ctx context.Context, id string) (helpdesk.Conversation, error) {
	return helpdesk.Conversation{ID: id, URL: "https://app.hd.io/a/apps/1/conversations/" + id}, nil
}
func (stubHelpdesk) GetParticipatingOperators(ctx context.Context, conversationID string) ([]model.Operator, error) {
	return nil, nil
}
func (stubHelpdesk) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	return nil
}

type stubKnowledgeBase struct{}

func (stubKnowledgeBase) ListTickets(ctx context.Context) ([]model.Ticket, error) { return nil, nil }
func (stubKnowledgeBase) GetTicket(ctx context.Context, trackerID string) (model.Ticket, error) {
	return model.Ticket{TrackerID: trackerID}, nil
}
func (stubKnowledgeBase) CreateTicket(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	return model.Ticket{TicketID: "JMP-1", TrackerID: "tr-1", TrackerURL: "https://tracker.example/tr-1"}, nil
}
func (stubKnowledgeBase) UpdateTicket(ctx context.Context, trackerID string, patch knowledgebase.TicketPatch) (model.Ticket, error) {
	return model.Ticket{TrackerID: trackerID}, nil
}
func (stubKnowledgeBase) GetDoneProperty(ctx context.Context, trackerID string) (bool, error) {
	return false, nil
}

type stubChat struct{}

func (stubChat) CreateChannel(ctx context.Context, name string) (model.ChannelInfo, error) {
	return model.ChannelInfo{ChannelID: "C1", URL: "https://app.x.com/archives/C1/"}, nil
}
func (stubChat) ListChannelMembers(ctx context.Context, channelID string) ([]model.ChatUser, error) {
	return nil, nil
}
func (stubChat) ListAllUsers(ctx context.Context) ([]model.ChatUser, error) { return nil, nil }
func (stubChat) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	return nil
}
func (stubChat) SetChannelTopic(ctx context.Context, channelID, text string) error { return nil }
func (stubChat) PostMessage(ctx context.Context, channelID, text string) error     { return nil }

type stubLLM struct{}

func (stubLLM) FindOrCreateTicket(ctx context.Context, candidates []model.Ticket, messageBody string, conversation llm.Conversation) (model.AIDecision, error) {
	return model.NewCreateDecision(model.NewTicketSpec{Title: "t", Summary: "s", Slug: "slug"}), nil
}

func newTestRegistry() *Registry {
	engine := pipeline.NewEngine(&pipeline.Adapters{
		Helpdesk:      stubHelpdesk{},
		KnowledgeBase: stubKnowledgeBase{},
		Chat:          stubChat{},
		LLM:           stubLLM{},
	})
	return NewRegistry(engine)
}

func waitForTerminal(t *testing.T, req *pipeline.Request) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		switch req.Status() {
		case pipeline.RequestCompleted, pipeline.RequestFailed:
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("request %s did not reach a terminal status in time", req.ID)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newTestRegistry()
	req := r.Register(context.Background(), "conv-1", "https://app.hd.io/a/apps/1/conversations/1", "help")
	require.NotEmpty(t, req.ID)

	waitForTerminal(t, req)

	got, ok := r.Get(req.ID)
	require.True(t, ok)
	assert.Equal(t, pipeline.RequestCompleted, got.Status())

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, req.ID, list[0].ID)
}

func TestRegistry_Get_UnknownID(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_SubscribeReceivesUpdates(t *testing.T) {
	r := newTestRegistry()
	req := r.Register(context.Background(), "conv-2", "https://app.hd.io/a/apps/1/conversations/2", "help")

	subID, updates, ok := r.Subscribe(req.ID)
	require.True(t, ok)
	defer r.Unsubscribe(req.ID, subID)

	sawCompleted := false
	deadline := time.After(2 * time.Second)
	for !sawCompleted {
		select {
		case u := <-updates:
			if u.Status() == pipeline.RequestCompleted {
				sawCompleted = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for a completed update")
		}
	}
}

func TestRegistry_Subscribe_UnknownRequest(t *testing.T) {
	r := newTestRegistry()
	_, _, ok := r.Subscribe("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_SubscribeAllReceivesEveryRequest(t *testing.T) {
	r := newTestRegistry()
	subID, updates := r.SubscribeAll()
	defer r.UnsubscribeAll(subID)

	req1 := r.Register(context.Background(), "conv-3", "https://app.hd.io/a/apps/1/conversations/3", "help")
	req2 := r.Register(context.Background(), "conv-4", "https://app.hd.io/a/apps/1/conversations/4", "help")

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case u := <-updates:
			if u.Status() == pipeline.RequestCompleted {
				seen[u.ID] = true
			}
		case <-deadline:
			t.Fatalf("timed out; saw %d of 2 requests", len(seen))
		}
	}
	assert.True(t, seen[req1.ID])
	assert.True(t, seen[req2.ID])
}

func TestRegistry_Unsubscribe_ClosesChannel(t *testing.T) {
	r := newTestRegistry()
	req := r.Register(context.Background(), "conv-5", "https://app.hd.io/a/apps/1/conversations/5", "help")
	waitForTerminal(t, req)

	subID, updates, ok := r.Subscribe(req.ID)
	require.True(t, ok)
	r.Unsubscribe(req.ID, subID)

	_, open := <-updates
	assert.False(t, open, "channel should be closed after Unsubscribe")
}

func TestRegistry_RetryStep_UnknownRequest(t *testing.T) {
	r := newTestRegistry()
	err := r.RetryStep(context.Background(), "does-not-exist", pipeline.CreateOrUpdateTracker)
	assert.Error(t, err)
}

func TestRegistry_RetryAll_ReRunsRequest(t *testing.T) {
	r := newTestRegistry()
	req := r.Register(context.Background(), "conv-6", "https://app.hd.io/a/apps/1/conversations/6", "help")
	waitForTerminal(t, req)

	err := r.RetryAll(context.Background(), req.ID)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for req.Step(pipeline.CheckExistingTickets).Status != pipeline.StepCompleted && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	waitForTerminal(t, req)
	assert.Equal(t, pipeline.RequestCompleted, req.Status())
}

func TestRegistry_Sweep_RemovesExpiredTerminalRequest(t *testing.T) {
	r := newTestRegistry()
	done := r.Register(context.Background(), "conv-7", "https://app.hd.io/a/apps/1/conversations/7", "help")
	waitForTerminal(t, done)

	removed := r.Sweep(time.Now().Add(time.Hour), time.Minute)
	assert.Equal(t, 1, removed)

	_, ok := r.Get(done.ID)
	assert.False(t, ok)
}

func TestRegistry_Sweep_KeepsRequestsWithinRetention(t *testing.T) {
	r := newTestRegistry()
	done := r.Register(context.Background(), "conv-8", "https://app.hd.io/a/apps/1/conversations/8", "help")
	waitForTerminal(t, done)

	removed := r.Sweep(time.Now(), time.Hour)
	assert.Equal(t, 0, removed)

	_, ok := r.Get(done.ID)
	assert.True(t, ok)
}
