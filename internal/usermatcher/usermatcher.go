// Package usermatcher matches helpdesk operators to chat-service users.
// It is pure: no I/O, no adapters, deterministic output for a given input.
package usermatcher

import (
	"strings"

	"github.com/jump-triage/conductor/internal/model"
)

// Match returns the chat-service user IDs that correspond to the given
// operators, deduplicated and in first-seen order. Matching rule: an
// operator matches a chat user when their emails are equal
// case-insensitively; on miss, fall back to a match on normalized full
// name. Operators with no match are silently dropped.
func Match(operators []model.Operator, chatUsers []model.ChatUser) []string {
	byEmail := make(map[string]model.ChatUser, len(chatUsers))
	byName := make(map[string]model.ChatUser, len(chatUsers))
	for _, u := range chatUsers {
		if e := normalize(u.Email); e != "" {
			byEmail[e] = u
		}
		if n := normalize(u.Name); n != "" {
			byName[n] = u
		}
	}

	seen := make(map[string]bool, len(operators))
	matched := make([]string, 0, len(operators))

	for _, op := range operators {
		var chatUser model.ChatUser
		var ok bool

		if e := normalize(op.Email); e != "" {
			chatUser, ok = byEmail[e]
		}
		if !ok {
			if n := normalize(op.Name); n != "" {
				chatUser, ok = byName[n]
			}
		}
		if !ok {
			continue
		}
		if seen[chatUser.ID] {
			continue
		}
		seen[chatUser.ID] = true
		matched = append(matched, chatUser.ID)
	}

	return matched
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
