package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"workdocs-ai/internal/ai"
	"workdocs-ai/internal/model"
)

var ErrQuestionEmpty = errors.New("question is empty")

// AsyncMessagePublisher hands chat messages to the persistence queue.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// RetrievalQuerier is the opaque retrieval-augmented answer collaborator.
// It returns raw citations with no ownership guarantees; ChatService
// must pass them through the citation filter before responding.
type RetrievalQuerier interface {
	Query(ctx context.Context, in ai.QueryInput) (*ai.QueryResult, error)
}

// ChatService runs the conversational flow inside an active session:
// verify the session, query the retrieval collaborator over the caller's
// indices, filter citations, and persist the exchange asynchronously.
type ChatService struct {
	sessions           SessionStore
	messages           MessageStore
	publisher          AsyncMessagePublisher
	historyCache       HistoryCache
	rag                RetrievalQuerier
	filter             *CitationFilter
	myDocsIndexID      string
	regulationsIndexID string
	maxContext         int
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	rag RetrievalQuerier,
	filter *CitationFilter,
	myDocsIndexID string,
	regulationsIndexID string,
	maxContext int,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		sessions:           sessions,
		messages:           messages,
		publisher:          publisher,
		historyCache:       historyCache,
		rag:                rag,
		filter:             filter,
		myDocsIndexID:      myDocsIndexID,
		regulationsIndexID: regulationsIndexID,
		maxContext:         maxContext,
	}
}

type AskInput struct {
	UserID    uint
	SessionID uint
	Question  string
}

type AskResult struct {
	Answer    string          `json:"answer"`
	Citations *Citations      `json:"citations"`
	Messages  []model.Message `json:"messages"`
}

func (s *ChatService) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	if in.UserID == 0 || in.SessionID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	session, err := s.sessions.GetByIDAndUserID(in.SessionID, in.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Active(time.Now()) {
		return nil, ErrSessionExpired
	}

	history, err := s.buildHistory(session.ID)
	if err != nil {
		return nil, err
	}

	privateIndexIDs := []string{}
	if s.myDocsIndexID != "" {
		privateIndexIDs = append(privateIndexIDs, s.myDocsIndexID)
	}
	publicIndexIDs := []string{}
	if s.regulationsIndexID != "" {
		publicIndexIDs = append(publicIndexIDs, s.regulationsIndexID)
	}

	answer, err := s.rag.Query(ctx, ai.QueryInput{
		OwnerID:         in.UserID,
		SessionID:       session.ID,
		Question:        question,
		History:         history,
		SessionIndexID:  session.VectorIndexID,
		PrivateIndexIDs: privateIndexIDs,
		PublicIndexIDs:  publicIndexIDs,
	})
	if err != nil {
		return nil, err
	}

	citations, err := s.filter.Filter(in.UserID, answer.Citations)
	if err != nil {
		return nil, err
	}

	userMessage := model.Message{
		SessionID: session.ID,
		UserID:    in.UserID,
		Role:      model.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	}
	assistantMessage := model.Message{
		SessionID: session.ID,
		UserID:    in.UserID,
		Role:      model.RoleAssistant,
		Content:   answer.Answer,
		CreatedAt: time.Now(),
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, session.ID)
		_ = s.historyCache.DeleteHistory(ctx, session.ID)
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:    answer.Answer,
		Citations: citations,
		Messages:  []model.Message{userMessage, assistantMessage},
	}, nil
}

// GetHistory serves the session transcript, preferring the cache when it
// is present and not marked dirty by an in-flight write.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messages.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) buildHistory(sessionID uint) ([]ai.ChatTurn, error) {
	recent, err := s.messages.ListRecentBySessionID(sessionID, s.maxContext)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.ChatTurn, 0, len(recent))
	for _, msg := range recent {
		role := msg.Role
		if role == "" {
			role = model.RoleUser
		}
		turns = append(turns, ai.ChatTurn{Role: role, Content: msg.Content})
	}
	return turns, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
