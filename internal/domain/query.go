package domain

import (
	"strconv"
	"strings"
)

// Role tags a conversation message.
type Role string

// Conversation roles accepted from clients.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleDeveloper:
		return true
	}
	return false
}

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Query is the input of one orchestration run: the user text and the prior conversation.
type Query struct {
	text    string
	history []Message
}

// NewQuery validates the raw request and trims the query text. The history is copied so the caller may reuse its slice.
func NewQuery(text string, history []Message) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, &ValidationError{Field: "query", Reason: "Missing 'query' in request body"}
	}
	for i, m := range history {
		if !m.Role.Valid() {
			return Query{}, &ValidationError{
				Field:  "messages",
				Reason: "unknown role " + string(m.Role) + " at position " + strconv.Itoa(i),
			}
		}
	}
	h := make([]Message, len(history))
	copy(h, history)
	return Query{text: text, history: h}, nil
}

// Text returns the user query.
func (q Query) Text() string { return q.text }

// History returns a copy of the prior conversation.
func (q Query) History() []Message {
	h := make([]Message, len(q.history))
	copy(h, q.history)
	return h
}

// Conversation returns the prior conversation followed by the query as a user turn.
func (q Query) Conversation() []Message {
	msgs := make([]Message, 0, len(q.history)+1)
	msgs = append(msgs, q.history...)
	return append(msgs, Message{Role: RoleUser, Content: q.text})
}

