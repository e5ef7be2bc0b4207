package model

// StepResultKind discriminates the payload shapes a Step.Result can hold,
// per step type (spec §6 "Step-result payloads"). A tagged struct is used
// instead of a dynamic `any` field so the pipeline and its callers can
// pattern-match on Kind rather than type-asserting an interface value.
type StepResultKind string

const (
	ResultKindTickets  StepResultKind = "tickets"
	ResultKindDecision StepResultKind = "decision"
	ResultKindTicket   StepResultKind = "ticket"
	ResultKindChannel  StepResultKind = "channel"
	ResultKindUnit     StepResultKind = "unit"
)

// StepResult is the sum type held by Step.Result.
type StepResult struct {
	Kind     StepResultKind
	Tickets  []Ticket
	Decision AIDecision
	Ticket   Ticket
	Channel  ChannelInfo
}

func TicketsResult(ts []Ticket) StepResult {
	return StepResult{Kind: ResultKindTickets, Tickets: ts}
}

func DecisionResult(d AIDecision) StepResult {
	return StepResult{Kind: ResultKindDecision, Decision: d}
}

func TicketResult(t Ticket) StepResult {
	return StepResult{Kind: ResultKindTicket, Ticket: t}
}

func ChannelResult(c ChannelInfo) StepResult {
	return StepResult{Kind: ResultKindChannel, Channel: c}
}

func UnitResult() StepResult {
	return StepResult{Kind: ResultKindUnit}
}

// AsTickets returns the Tickets payload and true iff Kind == ResultKindTickets.
func (r StepResult) AsTickets() ([]Ticket, bool) {
	if r.Kind != ResultKindTickets {
		return nil, false
	}
	return r.Tickets, true
}

// AsDecision returns the Decision payload and true iff Kind == ResultKindDecision.
func (r StepResult) AsDecision() (AIDecision, bool) {
	if r.Kind != ResultKindDecision {
		return AIDecision{}, false
	}
	return r.Decision, true
}

// AsTicket returns the Ticket payload and true iff Kind == ResultKindTicket.
func (r StepResult) AsTicket() (Ticket, bool) {
	if r.Kind != ResultKindTicket {
		return Ticket{}, false
	}
	return r.Ticket, true
}

// AsChannel returns the Channel payload and true iff Kind == ResultKindChannel.
func (r StepResult) AsChannel() (ChannelInfo, bool) {
	if r.Kind != ResultKindChannel {
		return ChannelInfo{}, false
	}
	return r.Channel, true
}
