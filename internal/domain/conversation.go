package domain

import "time"

// Exchange is one user message and the reply it received.
type Exchange struct {
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	Reply          string    `json:"reply"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationMeta stores aggregate conversation state.
type ConversationMeta struct {
	ConversationID string
	LastActivity   time.Time
	Exchanges      int
}
