// Package helpdesk adapts the customer-conversation helpdesk API. No SDK
// for this vendor exists in the retrieval corpus (see DESIGN.md), so this
// is a small hand-rolled net/http client in the same texture as the
// teacher's own hand-rolled clients: a context timeout per call, a typed
// response decode, errors wrapped through internal/apperr. HTTP transport
// concerns (retries, TLS tuning, pagination mechanics) are explicitly out
// of scope per spec §1 and are not implemented here.
package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jump-triage/conductor/internal/adapter/httputil"
	"github.com/jump-triage/conductor/internal/apperr"
	"github.com/jump-triage/conductor/internal/model"
)

// Conversation is a single helpdesk conversation thread.
type Conversation struct {
	ID   string
	URL  string
	Body string
}

// Client is the narrow interface the pipeline and done-notifier depend
// on. Test doubles may be injected per Request.
type Client interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	GetParticipatingOperators(ctx context.Context, conversationID string) ([]model.Operator, error)
	ReplyToConversation(ctx context.Context, conversationID, body string) error
}

const serviceName = "helpdesk"

// HTTPClient is the production Client backed by the helpdesk REST API.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	timeout     time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout overrides the default per-call timeout (60s, spec §5).
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = d }
}

// WithHTTPClient overrides the underlying *http.Client (for test doubles
// pointed at a mock server).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient constructs a production helpdesk client.
func NewHTTPClient(baseURL, bearerToken string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  http.DefaultClient,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type conversationResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Body string `json:"body"`
}

// GetConversation fetches a single conversation by id.
func (c *HTTPClient) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var out conversationResponse
	path := fmt.Sprintf("/conversations/%s", id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Conversation{}, err
	}
	return Conversation{ID: out.ID, URL: out.URL, Body: out.Body}, nil
}

type operatorResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GetParticipatingOperators lists the operators who have participated in
// the given conversation.
func (c *HTTPClient) GetParticipatingOperators(ctx context.Context, conversationID string) ([]model.Operator, error) {
	var out []operatorResponse
	path := fmt.Sprintf("/conversations/%s/operators", conversationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	operators := make([]model.Operator, 0, len(out))
	for _, o := range out {
		operators = append(operators, model.Operator{ID: o.ID, Email: o.Email, Name: o.Name})
	}
	return operators, nil
}

// ReplyToConversation posts a reply message to the given conversation.
func (c *HTTPClient) ReplyToConversation(ctx context.Context, conversationID, body string) error {
	path := fmt.Sprintf("/conversations/%s/reply", conversationID)
	payload := map[string]string{"body": body}
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return apperr.ParseFailure(serviceName, fmt.Sprintf("encoding request: %v", err))
		}
	}

	req, err := httputil.NewRequest(ctx, method, c.baseURL+path, encoded)
	if err != nil {
		return apperr.TransportFailure(serviceName, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Timeout(serviceName)
		}
		return apperr.TransportFailure(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.RemoteFailure(serviceName, resp.StatusCode, httputil.BodySnippet(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.ParseFailure(serviceName, err.Error())
	}
	return nil
}
