package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"vidyaguide/internal/domain"
)

const (
	// EmptyMessageReply is returned instead of calling the model when the
	// message is blank.
	EmptyMessageReply = "Please type a message."

	DefaultModel         = "llama-3.3-70b-versatile"
	defaultMaxMessageLen = 2000
	defaultHistoryLimit  = 50
	maxConversationIDLen = 64
	chatTemperature      = 0.4
)

type LLMClient interface {
	Complete(ctx context.Context, in domain.Completion) (string, error)
}

type ExchangeStore interface {
	SaveExchange(ctx context.Context, ex domain.Exchange) error
	GetExchanges(ctx context.Context, conversationID string, limit int) ([]domain.Exchange, error)
	GetMeta(ctx context.Context, conversationID string) (domain.ConversationMeta, bool, error)
}

type ChatConfig struct {
	Model         string
	MaxMessageLen int
	HistoryLimit  int
}

type ChatService struct {
	llm   LLMClient
	store ExchangeStore
	cfg   ChatConfig
}

type ChatInput struct {
	Message        string
	ConversationID string
}

type ChatOutput struct {
	Reply          string
	ConversationID string
}

type HistoryOutput struct {
	ConversationID string
	Total          int
	Exchanges      []domain.Exchange
}

func NewChatService(llm LLMClient, store ExchangeStore, cfg ChatConfig) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: exchange store must not be nil")
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &ChatService{llm: llm, store: store, cfg: cfg}, nil
}

// Reply answers a single message. The message goes to the model exactly as
// received; blank messages get EmptyMessageReply and are not stored.
func (s *ChatService) Reply(ctx context.Context, in ChatInput) (ChatOutput, error) {
	convID := strings.TrimSpace(in.ConversationID)
	if strings.TrimSpace(in.Message) == "" {
		return ChatOutput{Reply: EmptyMessageReply, ConversationID: convID}, nil
	}
	if utf8.RuneCountInString(in.Message) > s.cfg.MaxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	if len(convID) > maxConversationIDLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "conversation_id_too_long", nil)
	}
	if convID == "" {
		convID = newUUID()
	}

	reply, err := s.llm.Complete(ctx, domain.Completion{
		Model:       s.cfg.Model,
		Messages:    []domain.ChatMessage{{Role: "user", Content: in.Message}},
		Temperature: chatTemperature,
	})
	if err != nil {
		return ChatOutput{}, upstreamError("llm", err)
	}
	if strings.TrimSpace(reply) == "" {
		return ChatOutput{}, newError(ErrorUpstream, "llm_empty_reply", nil)
	}

	if err := s.store.SaveExchange(ctx, domain.Exchange{
		ConversationID: convID,
		Message:        in.Message,
		Reply:          reply,
	}); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}

	return ChatOutput{Reply: reply, ConversationID: convID}, nil
}

// History returns the stored exchanges of a conversation, oldest first.
// Unknown conversations yield an empty history.
func (s *ChatService) History(ctx context.Context, conversationID string) (HistoryOutput, error) {
	convID := strings.TrimSpace(conversationID)
	if convID == "" {
		return HistoryOutput{}, newError(ErrorInvalidInput, "missing_conversation_id", nil)
	}
	if len(convID) > maxConversationIDLen {
		return HistoryOutput{}, newError(ErrorInvalidInput, "conversation_id_too_long", nil)
	}

	meta, found, err := s.store.GetMeta(ctx, convID)
	if err != nil {
		return HistoryOutput{}, newError(ErrorInternal, "dynamodb_meta_error", err)
	}
	out := HistoryOutput{ConversationID: convID, Exchanges: []domain.Exchange{}}
	if !found {
		return out, nil
	}

	exchanges, err := s.store.GetExchanges(ctx, convID, s.cfg.HistoryLimit)
	if err != nil {
		return HistoryOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}
	out.Total = meta.Exchanges
	out.Exchanges = exchanges
	return out, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
