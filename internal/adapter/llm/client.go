// Package llm adapts the large-language-model decision service: the
// oracle that picks an existing tracker record or proposes a new one for
// an inbound conversation (spec §4.1 "LLM"). Grounded on
// dshills-langgraph-go's Anthropic ChatModel adapter
// (graph/model/anthropic/anthropic.go): the real
// github.com/anthropics/anthropic-sdk-go client, tool-calling used to
// force a structured response instead of parsing free text.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jump-triage/conductor/internal/apperr"
	"github.com/jump-triage/conductor/internal/model"
)

const serviceName = "llm"

// decisionToolName is the single tool the model is forced to call so its
// output is structured rather than free text.
const decisionToolName = "propose_ticket"

// Conversation carries the helpdesk context the LLM is given alongside
// the candidate tickets and message body (spec §4.3 step 2 inputs).
type Conversation struct {
	ConversationID string
	URL            string
	Body           string
}

// Client is the narrow interface the pipeline depends on.
type Client interface {
	FindOrCreateTicket(ctx context.Context, candidates []model.Ticket, messageBody string, conversation Conversation) (model.AIDecision, error)
}

// AnthropicClient is the production Client backed by Claude.
type AnthropicClient struct {
	apiKey    string
	baseURL   string
	modelName string
	timeout   time.Duration
}

// Option configures an AnthropicClient.
type Option func(*AnthropicClient)

// WithTimeout overrides the default per-call timeout (60s, spec §5).
func WithTimeout(d time.Duration) Option {
	return func(c *AnthropicClient) { c.timeout = d }
}

// NewAnthropicClient constructs a production LLM decision client.
// The model name defaults to claude-sonnet-4-5-20250929; WithModel
// overrides it. endpoint is
// the configured "LLM endpoint" (spec §6's configuration surface); an
// empty value uses the SDK's default Anthropic API URL.
func NewAnthropicClient(apiKey, endpoint string, opts ...Option) *AnthropicClient {
	c := &AnthropicClient{apiKey: apiKey, baseURL: endpoint, modelName: "claude-sonnet-4-5-20250929", timeout: 60 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithModel overrides the default Claude model name.
func WithModel(modelName string) Option {
	return func(c *AnthropicClient) { c.modelName = modelName }
}

// decisionInput mirrors the JSON schema given to the model via the
// propose_ticket tool and is decoded straight from ToolUseBlock.Input.
type decisionInput struct {
	Decision       string `json:"decision"` // "existing" | "new"
	ExistingTicket string `json:"existing_ticket_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Summary        string `json:"summary,omitempty"`
	Slug           string `json:"slug,omitempty"`
}

func decisionToolSchema() anthropicsdk.ToolInputSchemaParam {
	return anthropicsdk.ToolInputSchemaParam{
		Properties: map[string]interface{}{
			"decision": map[string]interface{}{
				"type": "string",
				"enum": []string{"existing", "new"},
			},
			"existing_ticket_id": map[string]interface{}{"type": "string"},
			"title":              map[string]interface{}{"type": "string"},
			"summary":            map[string]interface{}{"type": "string"},
			"slug":               map[string]interface{}{"type": "string"},
		},
		Required: []string{"decision"},
	}
}

// FindOrCreateTicket asks the model to either pick the most relevant
// existing ticket from candidates or propose a new one. The pipeline
// treats the result as a trusted oracle decision and does not
// re-validate it (spec §4.1).
func (c *AnthropicClient) FindOrCreateTicket(ctx context.Context, candidates []model.Ticket, messageBody string, conversation Conversation) (model.AIDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	clientOpts := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(c.baseURL))
	}
	client := anthropicsdk.NewClient(clientOpts...)

	candidateJSON, err := json.Marshal(candidates)
	if err != nil {
		return model.AIDecision{}, apperr.ParseFailure(serviceName, fmt.Sprintf("encoding candidates: %v", err))
	}

	prompt := fmt.Sprintf(
		"A new support conversation arrived.\n\nConversation id: %s\nConversation URL: %s\nMessage body:\n%s\n\n"+
			"Existing tracker tickets (JSON):\n%s\n\n"+
			"Call %s: if one existing ticket is clearly about the same issue, set decision=\"existing\" and "+
			"existing_ticket_id to its tracker_id. Otherwise set decision=\"new\" and provide title, summary, "+
			"and a short url-safe slug for a new ticket.",
		conversation.ConversationID, conversation.URL, messageBody, candidateJSON, decisionToolName,
	)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: 1024,
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
		Tools: []anthropicsdk.ToolUnionParam{
			{
				OfTool: &anthropicsdk.ToolParam{
					Name:        decisionToolName,
					Description: anthropicsdk.String("Record the routing decision for this support conversation."),
					InputSchema: decisionToolSchema(),
				},
			},
		},
		ToolChoice: anthropicsdk.ToolChoiceUnionParam{
			OfTool: &anthropicsdk.ToolChoiceToolParam{Name: decisionToolName},
		},
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return model.AIDecision{}, apperr.Timeout(serviceName)
		}
		return model.AIDecision{}, apperr.TransportFailure(serviceName, err)
	}

	for _, block := range resp.Content {
		toolUse, ok := block.AsAny().(anthropicsdk.ToolUseBlock)
		if !ok || toolUse.Name != decisionToolName {
			continue
		}
		var in decisionInput
		if err := json.Unmarshal(toolUse.Input, &in); err != nil {
			return model.AIDecision{}, apperr.ParseFailure(serviceName, fmt.Sprintf("decoding tool input: %v", err))
		}
		return toDecision(in, candidates)
	}

	return model.AIDecision{}, apperr.ParseFailure(serviceName, "model did not call "+decisionToolName)
}

func toDecision(in decisionInput, candidates []model.Ticket) (model.AIDecision, error) {
	switch in.Decision {
	case "existing":
		for _, t := range candidates {
			if t.TrackerID == in.ExistingTicket {
				return model.NewExistingDecision(t), nil
			}
		}
		return model.AIDecision{}, apperr.ParseFailure(serviceName, "existing_ticket_id not among candidates: "+in.ExistingTicket)
	case "new":
		return model.NewCreateDecision(model.NewTicketSpec{
			Title:   in.Title,
			Summary: in.Summary,
			Slug:    in.Slug,
		}), nil
	default:
		return model.AIDecision{}, apperr.ParseFailure(serviceName, "unrecognized decision value: "+in.Decision)
	}
}
