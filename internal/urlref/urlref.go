// Package urlref extracts identifiers embedded in the URL formats the
// chat service and helpdesk use, per spec §6.
package urlref

import (
	"net/url"
	"regexp"
	"strings"
)

// rawChannelID matches a bare chat-service channel id: uppercase
// alphanumeric, no path separators.
var rawChannelID = regexp.MustCompile(`^[A-Z0-9]+$`)

// ExtractChannelID resolves a chat channel reference to its channel id.
// Accepts either a raw channel id (round-trips to itself) or a URL of the
// form "https://app.<chat>.com/…/archives/{CHANNEL_ID}/…" (the segment
// immediately following "archives" is returned). ok is false if neither
// shape matches.
func ExtractChannelID(raw string) (id string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if rawChannelID.MatchString(raw) {
		return raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == "archives" && i+1 < len(segments) {
			return segments[i+1], true
		}
	}
	return "", false
}

// ExtractConversationID resolves a helpdesk conversation reference to its
// conversation id. Accepts either a URL of the form
// "https://app.<helpdesk>.io/a/apps/{APP}/conversations/{CONVERSATION_ID}"
// (the last path segment is returned) or a raw conversation id, which is
// returned verbatim.
func ExtractConversationID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return raw
	}
	segments := strings.Split(trimmed, "/")
	return segments[len(segments)-1]
}
