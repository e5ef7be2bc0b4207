package model

// DecisionKind discriminates the two AIDecision variants.
type DecisionKind string

const (
	DecisionExisting DecisionKind = "existing"
	DecisionNew      DecisionKind = "new"
)

// NewTicketSpec is the payload of the {New, ...} AIDecision variant. Slug
// is a short URL-safe identifier used to name the chat channel.
type NewTicketSpec struct {
	Title   string
	Summary string
	Slug    string
}

// AIDecision is the tagged variant returned by the LLM step: either reuse
// an existing tracker record or propose a new one. Only the field named
// by Kind is meaningful; callers should use the Existing/New accessors
// rather than reading ExistingTicket/NewTicket directly.
type AIDecision struct {
	Kind          DecisionKind
	ExistingTicket Ticket
	NewTicket      NewTicketSpec
}

// NewExistingDecision builds the {Existing, Ticket} variant.
func NewExistingDecision(t Ticket) AIDecision {
	return AIDecision{Kind: DecisionExisting, ExistingTicket: t}
}

// NewCreateDecision builds the {New, payload} variant.
func NewCreateDecision(spec NewTicketSpec) AIDecision {
	return AIDecision{Kind: DecisionNew, NewTicket: spec}
}

// Existing returns the existing Ticket and true iff Kind == DecisionExisting.
func (d AIDecision) Existing() (Ticket, bool) {
	if d.Kind != DecisionExisting {
		return Ticket{}, false
	}
	return d.ExistingTicket, true
}

// New returns the new-ticket spec and true iff Kind == DecisionNew.
func (d AIDecision) New() (NewTicketSpec, bool) {
	if d.Kind != DecisionNew {
		return NewTicketSpec{}, false
	}
	return d.NewTicket, true
}
