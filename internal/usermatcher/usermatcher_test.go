package usermatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jump-triage/conductor/internal/model"
)

func TestMatch(t *testing.T) {
	operators := []model.Operator{
		{ID: "op1", Email: "a@x.com"},
		{ID: "op2", Name: "Jamie Rivera"},
		{ID: "op3", Email: "missing@x.com"},
	}
	chatUsers := []model.ChatUser{
		{ID: "U9", Email: "A@X.com"},
		{ID: "U10", Name: "jamie rivera"},
	}

	got := Match(operators, chatUsers)
	assert.Equal(t, []string{"U9", "U10"}, got)
}

func TestMatch_DeduplicatesAndPreservesOrder(t *testing.T) {
	operators := []model.Operator{
		{ID: "op1", Email: "a@x.com"},
		{ID: "op2", Email: "a@x.com"},
	}
	chatUsers := []model.ChatUser{{ID: "U9", Email: "a@x.com"}}

	got := Match(operators, chatUsers)
	assert.Equal(t, []string{"U9"}, got)
}

func TestMatch_IsDeterministicAndIdempotentUnderDuplication(t *testing.T) {
	operators := []model.Operator{{ID: "op1", Email: "a@x.com"}}
	chatUsers := []model.ChatUser{{ID: "U9", Email: "a@x.com"}}

	first := Match(operators, chatUsers)
	second := Match(operators, chatUsers)
	assert.Equal(t, first, second)

	doubled := append(append([]model.ChatUser{}, chatUsers...), chatUsers...)
	assert.Equal(t, Match(operators, chatUsers), Match(operators, doubled))
}

func TestMatch_NoMatchIsSkipped(t *testing.T) {
	operators := []model.Operator{{ID: "op1", Email: "nobody@x.com"}}
	var chatUsers []model.ChatUser

	assert.Empty(t, Match(operators, chatUsers))
}
