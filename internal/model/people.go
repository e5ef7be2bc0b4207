package model

// Operator is a human support agent as known to the helpdesk.
type Operator struct {
	ID    string
	Email string
	Name  string
}

// ChatUser is a user account as known to the chat service.
type ChatUser struct {
	ID    string
	Email string
	Name  string
}
