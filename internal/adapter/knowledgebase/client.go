// Package knowledgebase adapts the tracker storage API (the "knowledge
// base" of spec §1/§4.1). No SDK for this vendor exists in the retrieval
// corpus (see DESIGN.md): this is a small hand-rolled net/http client in
// the teacher's texture, same as internal/adapter/helpdesk.
package knowledgebase

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

const serviceName = "knowledgebase"

// TicketPatch is the partial update accepted by UpdateTicket. Only
// non-nil fields are sent.
type TicketPatch struct {
	Title               *string
	LinkedConversations *string
	ChatChannel         *string
}

// Client is the narrow interface the pipeline depends on.
type Client interface {
	ListTickets(ctx context.Context) ([]model.Ticket, error)
	// GetTicket fetches a single tracker record by its opaque tracker id.
	// internal/donewebhook uses this to resolve the authoritative
	// ticket_id and chat_channel/linked_conversations for a completed
	// page rather than deriving them from the page id itself (spec §9
	// open question: "the authoritative ticket_id is obtained from the
	// KB record, not from heuristics on the page-id").
	GetTicket(ctx context.Context, trackerID string) (model.Ticket, error)
	CreateTicket(ctx context.Context, t model.Ticket) (model.Ticket, error)
	UpdateTicket(ctx context.Context, trackerID string, patch TicketPatch) (model.Ticket, error)
	// GetDoneProperty reads the boolean "done" checkbox for a tracker page,
	// used by internal/donewebhook to resolve the preferred (non-heuristic)
	// checkbox state (spec §6).
	GetDoneProperty(ctx context.Context, trackerID string) (bool, error)
}

// HTTPClient is the production Client.
type HTTPClient struct {
	baseURL     string
	bearerToken string
	databaseID  string
	httpClient  *http.Client
	timeout     time.Duration
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout overrides the default per-call timeout (60s, spec §5).
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.timeout = d }
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient constructs a production knowledge-base client.
func NewHTTPClient(baseURL, bearerToken, databaseID string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		databaseID:  databaseID,
		httpClient:  http.DefaultClient,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ticketWire struct {
	TicketID            string `json:"ticket_id"`
	TrackerID           string `json:"tracker_id"`
	TrackerURL          string `json:"tracker_url"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	LinkedConversations string `json:"linked_conversations"`
	ChatChannel         string `json:"chat_channel"`
}

func (w ticketWire) toModel() model.Ticket {
	return model.Ticket{
		TicketID:            w.TicketID,
		TrackerID:           w.TrackerID,
		TrackerURL:          w.TrackerURL,
		Title:               w.Title,
		Summary:             w.Summary,
		LinkedConversations: w.LinkedConversations,
		ChatChannel:         w.ChatChannel,
	}
}

func fromModel(t model.Ticket) ticketWire {
	return ticketWire{
		TicketID:            t.TicketID,
		TrackerID:           t.TrackerID,
		TrackerURL:          t.TrackerURL,
		Title:               t.Title,
		Summary:             t.Summary,
		LinkedConversations: t.LinkedConversations,
		ChatChannel:         t.ChatChannel,
	}
}

// ListTickets performs a full paginated enumeration of every tracker
// record in the configured database. The pipeline relies on this
// returning every ticket the LLM step should consider.
func (c *HTTPClient) ListTickets(ctx context.Context) ([]model.Ticket, error) {
	var all []model.Ticket
	cursor := ""
	for {
		var page struct {
			Results    []ticketWire `json:"results"`
			NextCursor string       `json:"next_cursor"`
			HasMore    bool         `json:"has_more"`
		}
		path := fmt.Sprintf("/databases/%s/query", c.databaseID)
		if cursor != "" {
			path += "?cursor=" + cursor
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Results {
			all = append(all, w.toModel())
		}
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// GetTicket fetches a single tracker record by tracker id.
func (c *HTTPClient) GetTicket(ctx context.Context, trackerID string) (model.Ticket, error) {
	var resp ticketWire
	path := fmt.Sprintf("/pages/%s", trackerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return model.Ticket{}, err
	}
	return resp.toModel(), nil
}

// CreateTicket stores a new tracker record and echoes it back populated
// with tracker_id, tracker_url, and ticket_id.
func (c *HTTPClient) CreateTicket(ctx context.Context, t model.Ticket) (model.Ticket, error) {
	req := fromModel(t)
	var resp ticketWire
	path := fmt.Sprintf("/databases/%s/pages", c.databaseID)
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return model.Ticket{}, err
	}
	return resp.toModel(), nil
}

type patchWire struct {
	Title               *string `json:"title,omitempty"`
	LinkedConversations *string `json:"linked_conversations,omitempty"`
	ChatChannel         *string `json:"chat_channel,omitempty"`
}

// UpdateTicket applies a partial update to the tracker record identified
// by trackerID. patch accepts any subset of {title, linked_conversations,
// chat_channel}.
func (c *HTTPClient) UpdateTicket(ctx context.Context, trackerID string, patch TicketPatch) (model.Ticket, error) {
	req := patchWire{
		Title:               patch.Title,
		LinkedConversations: patch.LinkedConversations,
		ChatChannel:         patch.ChatChannel,
	}
	var resp ticketWire
	path := fmt.Sprintf("/pages/%s", trackerID)
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &resp); err != nil {
		return model.Ticket{}, err
	}
	return resp.toModel(), nil
}

// GetDoneProperty reads the "done" checkbox property for a tracker page.
func (c *HTTPClient) GetDoneProperty(ctx context.Context, trackerID string) (bool, error) {
	var resp struct {
		Checked bool `json:"checked"`
	}
	path := fmt.Sprintf("/pages/%s/properties/done", trackerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Checked, nil
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
