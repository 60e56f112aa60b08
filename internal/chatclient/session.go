package chatclient

import (
	"context"
	"strings"
	"sync"
)

// Sender delivers one message and returns the reply. *Client implements it.
type Sender interface {
	Send(ctx context.Context, message, conversationID string) (Reply, error)
}

// Session pairs a Sender with a Transcript. Submissions are serialised so
// every reply lands directly after the message that produced it.
type Session struct {
	sender     Sender
	transcript *Transcript

	mu             sync.Mutex
	conversationID string
}

func NewSession(sender Sender, transcript *Transcript) *Session {
	return &Session{sender: sender, transcript: transcript}
}

// Submit records input and sends it. Blank input is ignored and reported as
// sent == false. Failures are recorded in the transcript as an error entry
// and returned.
func (s *Session) Submit(ctx context.Context, input string) (sent bool, err error) {
	if strings.TrimSpace(input) == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript.Append(Entry{Role: RoleUser, Text: input})
	reply, err := s.sender.Send(ctx, input, s.conversationID)
	if err != nil {
		s.transcript.Append(Entry{Role: RoleError, Text: Describe(err)})
		return true, err
	}
	if reply.ConversationID != "" {
		s.conversationID = reply.ConversationID
	}
	s.transcript.Append(Entry{Role: RoleAssistant, Text: reply.Text})
	return true, nil
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) Transcript() *Transcript {
	return s.transcript
}
