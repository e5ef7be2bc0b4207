// Package chat adapts the team-chat service. Grounded directly on the
// teacher's pkg/slack/client.go: a thin wrapper around the real
// github.com/slack-go/slack SDK, every call wrapped in a bounded
// context.WithTimeout, errors translated into internal/apperr values.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/jump-triage/conductor/internal/apperr"
	"github.com/jump-triage/conductor/internal/model"
)

const serviceName = "chat"

// Client is the narrow interface the pipeline depends on.
type Client interface {
	CreateChannel(ctx context.Context, name string) (model.ChannelInfo, error)
	ListChannelMembers(ctx context.Context, channelID string) ([]model.ChatUser, error)
	ListAllUsers(ctx context.Context) ([]model.ChatUser, error)
	// InviteUsers is idempotent at the adapter boundary: inviting a user
	// who is already a member is not an error (spec §4.1).
	InviteUsers(ctx context.Context, channelID string, userIDs []string) error
	SetChannelTopic(ctx context.Context, channelID, text string) error
	PostMessage(ctx context.Context, channelID, text string) error
}

// SlackClient is the production Client backed by slack-go/slack.
type SlackClient struct {
	api          *goslack.Client
	timeout      time.Duration
	channelURLFn func(channelID string) string
}

// Option configures a SlackClient.
type Option func(*SlackClient)

// WithTimeout overrides the default per-call timeout (60s, spec §5).
func WithTimeout(d time.Duration) Option {
	return func(c *SlackClient) { c.timeout = d }
}

// NewSlackClient constructs a production chat client for the given
// workspace subdomain (used to build archive URLs).
func NewSlackClient(token, workspaceSubdomain string, opts ...Option) *SlackClient {
	c := &SlackClient{
		api:     goslack.New(token),
		timeout: 60 * time.Second,
	}
	c.channelURLFn = func(channelID string) string {
		return fmt.Sprintf("https://app.%s.com/client/archives/%s/", workspaceSubdomain, channelID)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSlackClientWithAPIURL constructs a chat client pointed at a custom
// API URL, for tests.
func NewSlackClientWithAPIURL(token, apiURL, workspaceSubdomain string) *SlackClient {
	c := &SlackClient{
		api:     goslack.New(token, goslack.OptionAPIURL(apiURL)),
		timeout: 60 * time.Second,
	}
	c.channelURLFn = func(channelID string) string {
		return fmt.Sprintf("https://app.%s.com/client/archives/%s/", workspaceSubdomain, channelID)
	}
	return c
}

// CreateChannel creates a channel named name (already formatted by the
// caller as "{ticket_id}-{slug}", lowercased per spec §4.1).
func (c *SlackClient) CreateChannel(ctx context.Context, name string) (model.ChannelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	name = strings.ToLower(name)
	channel, err := c.api.CreateConversationContext(ctx, goslack.CreateConversationParams{ChannelName: name})
	if err != nil {
		return model.ChannelInfo{}, translate(ctx, "conversations.create", err)
	}
	return model.ChannelInfo{ChannelID: channel.ID, URL: c.channelURLFn(channel.ID)}, nil
}

// ListChannelMembers lists the current members of a channel.
func (c *SlackClient) ListChannelMembers(ctx context.Context, channelID string) ([]model.ChatUser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var memberIDs []string
	cursor := ""
	for {
		ids, nextCursor, err := c.api.GetUsersInConversationContext(ctx, &goslack.GetUsersInConversationParameters{
			ChannelID: channelID,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, translate(ctx, "conversations.members", err)
		}
		memberIDs = append(memberIDs, ids...)
		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	users := make([]model.ChatUser, 0, len(memberIDs))
	for _, id := range memberIDs {
		users = append(users, model.ChatUser{ID: id})
	}
	return users, nil
}

// ListAllUsers lists every user known to the workspace.
func (c *SlackClient) ListAllUsers(ctx context.Context) ([]model.ChatUser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slackUsers, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, translate(ctx, "users.list", err)
	}
	users := make([]model.ChatUser, 0, len(slackUsers))
	for _, u := range slackUsers {
		users = append(users, model.ChatUser{ID: u.ID, Email: u.Profile.Email, Name: u.RealName})
	}
	return users, nil
}

// InviteUsers invites the given user ids to a channel. Already-member
// users are not treated as an error (slack-go/slack returns
// "already_in_channel" for those, which we swallow here to honor the
// adapter-boundary idempotence spec §4.1 requires).
func (c *SlackClient) InviteUsers(ctx context.Context, channelID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.InviteUsersToConversationContext(ctx, channelID, userIDs...)
	if err != nil && !strings.Contains(err.Error(), "already_in_channel") {
		return translate(ctx, "conversations.invite", err)
	}
	return nil
}

// SetChannelTopic sets a channel's topic.
func (c *SlackClient) SetChannelTopic(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.api.SetTopicOfConversationContext(ctx, channelID, text)
	if err != nil {
		return translate(ctx, "conversations.setTopic", err)
	}
	return nil
}

// PostMessage posts a plain-text message to a channel.
func (c *SlackClient) PostMessage(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, channelID, goslack.MsgOptionText(text, false))
	if err != nil {
		return translate(ctx, "chat.postMessage", err)
	}
	return nil
}

func translate(ctx context.Context, method string, err error) error {
	if ctx.Err() != nil {
		return apperr.Timeout(serviceName)
	}
	if rlErr, ok := err.(*goslack.RateLimitedError); ok {
		return apperr.RemoteFailure(serviceName, 429, rlErr.Error())
	}
	return apperr.TransportFailure(serviceName, fmt.Errorf("%s: %w", method, err))
}
