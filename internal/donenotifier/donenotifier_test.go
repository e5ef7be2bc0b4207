package donenotifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jump-triage/conductor/internal/model"
)

type fakeChatPoster struct {
	posts []string
	err   error
}

func (f *fakeChatPoster) PostMessage(ctx context.Context, channelID, text string) error {
	f.posts = append(f.posts, channelID+":"+text)
	return f.err
}

type fakeConversationReplier struct {
	replies []string
	errFor  map[string]error
}

func (f *fakeConversationReplier) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	f.replies = append(f.replies, conversationID+":"+body)
	if f.errFor != nil {
		if err, ok := f.errFor[conversationID]; ok {
			return err
		}
	}
	return nil
}

func TestNotifyDone_HappyPath(t *testing.T) {
	chat := &fakeChatPoster{}
	hd := &fakeConversationReplier{}
	ticket := model.Ticket{
		TicketID:            "JMP-1",
		ChatChannel:         "https://app.x.com/archives/C1/",
		LinkedConversations: "https://app.hd.io/a/apps/1/conversations/10,https://app.hd.io/a/apps/1/conversations/11",
	}

	report := NotifyDone(context.Background(), chat, hd, ticket)

	require.NotNil(t, report)
	assert.False(t, report.HasFailures())
	assert.Len(t, report.Attempted, 3)
	require.Len(t, chat.posts, 1)
	assert.Equal(t, "C1:Ticket JMP-1 has been marked as Done.", chat.posts[0])
	assert.Equal(t, []string{
		"10:Ticket JMP-1 has been marked as Done.",
		"11:Ticket JMP-1 has been marked as Done.",
	}, hd.replies)
}

func TestNotifyDone_NoChatChannel_SkipsWithoutFailure(t *testing.T) {
	chat := &fakeChatPoster{}
	hd := &fakeConversationReplier{}
	ticket := model.Ticket{TicketID: "JMP-2", LinkedConversations: "https://app.hd.io/a/apps/1/conversations/5"}

	report := NotifyDone(context.Background(), chat, hd, ticket)

	assert.False(t, report.HasFailures())
	assert.Empty(t, chat.posts)
	assert.Len(t, report.Attempted, 1)
}

func TestNotifyDone_MalformedChatChannel_RecordsFailureWithoutPanicking(t *testing.T) {
	chat := &fakeChatPoster{}
	hd := &fakeConversationReplier{}
	ticket := model.Ticket{TicketID: "JMP-3", ChatChannel: "not-a-recognizable-channel-value://??"}

	report := NotifyDone(context.Background(), chat, hd, ticket)

	require.True(t, report.HasFailures())
	assert.Empty(t, chat.posts)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "chat", report.Failures[0].Target.Kind)
}

func TestNotifyDone_PerTargetFailureDoesNotAbortSiblings(t *testing.T) {
	chat := &fakeChatPoster{err: errors.New("chat service unavailable")}
	hd := &fakeConversationReplier{
		errFor: map[string]error{"10": errors.New("conversation closed")},
	}
	ticket := model.Ticket{
		TicketID:            "JMP-4",
		ChatChannel:         "C1",
		LinkedConversations: "https://app.hd.io/a/apps/1/conversations/10,https://app.hd.io/a/apps/1/conversations/11",
	}

	report := NotifyDone(context.Background(), chat, hd, ticket)

	require.True(t, report.HasFailures())
	assert.Len(t, report.Attempted, 3)
	require.Len(t, report.Failures, 2)
	// both the chat post and conversation 10's reply failed, but conversation
	// 11 was still attempted despite the earlier failures.
	assert.Equal(t, []string{
		"10:Ticket JMP-4 has been marked as Done.",
		"11:Ticket JMP-4 has been marked as Done.",
	}, hd.replies)
}

func TestNotifyDone_EmptyTicket_NeverPanics(t *testing.T) {
	chat := &fakeChatPoster{}
	hd := &fakeConversationReplier{}

	report := NotifyDone(context.Background(), chat, hd, model.Ticket{})

	require.NotNil(t, report)
	assert.False(t, report.HasFailures())
	assert.Empty(t, report.Attempted)
}

func TestReport_String(t *testing.T) {
	ok := &Report{Attempted: []Target{{Kind: "chat", ID: "C1"}}}
	assert.Equal(t, "delivered to 1 target(s)", ok.String())

	failed := &Report{
		Attempted: []Target{{Kind: "chat", ID: "C1"}},
		Failures:  []Failure{{Target: Target{Kind: "chat", ID: "C1"}, Err: errors.New("boom")}},
	}
	assert.Contains(t, failed.String(), "1/1 target(s) failed")
	assert.Contains(t, failed.String(), "chat:C1")
}
