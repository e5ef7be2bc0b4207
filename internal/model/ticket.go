// Package model defines the data shapes shared across the pipeline,
// the external adapters, and the coordinator: Ticket, AIDecision,
// ChannelInfo, and the Step result sum type.
package model

import "strings"

// Ticket is the canonical tracker record. It is treated as immutable
// between pipeline steps: a step that needs a changed Ticket returns a
// new value rather than mutating an existing one.
type Ticket struct {
	TicketID            string
	TrackerID           string
	TrackerURL          string
	Title               string
	Summary             string
	LinkedConversations string
	ChatChannel         string
}

// LinkedConversationList splits the comma-joined LinkedConversations field
// into its component URLs, trimming whitespace and dropping empty entries.
func (t Ticket) LinkedConversationList() []string {
	if strings.TrimSpace(t.LinkedConversations) == "" {
		return nil
	}
	parts := strings.Split(t.LinkedConversations, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasConversation reports whether url already appears in LinkedConversations.
func (t Ticket) HasConversation(url string) bool {
	for _, c := range t.LinkedConversationList() {
		if c == url {
			return true
		}
	}
	return false
}

// WithAddedConversation returns a copy of t with url appended to
// LinkedConversations, preserving insertion order. Returns t unchanged
// (not a copy of identical value, but behaviorally a no-op) if url is
// already present.
func (t Ticket) WithAddedConversation(url string) Ticket {
	if t.HasConversation(url) {
		return t
	}
	existing := t.LinkedConversationList()
	existing = append(existing, url)
	t.LinkedConversations = strings.Join(existing, ",")
	return t
}

// ChannelInfo identifies a chat-service channel.
type ChannelInfo struct {
	ChannelID string
	URL       string
}
