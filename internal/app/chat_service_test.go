package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workdocs-ai/internal/ai"
	"workdocs-ai/internal/model"
)

type stubPublisher struct {
	published []model.Message
	err       error
}

func (s *stubPublisher) Publish(ctx context.Context, msg model.Message) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, msg)
	return nil
}

type stubHistoryCache struct {
	history     []model.Message
	hit         bool
	dirty       bool
	dirtyMarked int
	deleted     int
	stored      [][]model.Message
}

func (s *stubHistoryCache) GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error) {
	return s.history, s.hit, nil
}

func (s *stubHistoryCache) SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error {
	s.stored = append(s.stored, messages)
	return nil
}

func (s *stubHistoryCache) DeleteHistory(ctx context.Context, sessionID uint) error {
	s.deleted++
	return nil
}

func (s *stubHistoryCache) MarkDirty(ctx context.Context, sessionID uint) error {
	s.dirtyMarked++
	s.dirty = true
	return nil
}

func (s *stubHistoryCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	return s.dirty, nil
}

type stubRetriever struct {
	result *ai.QueryResult
	err    error
	lastIn ai.QueryInput
}

func (s *stubRetriever) Query(ctx context.Context, in ai.QueryInput) (*ai.QueryResult, error) {
	s.lastIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type chatFixture struct {
	svc       *ChatService
	sessions  *fakeSessionStore
	messages  *fakeMessageStore
	publisher *stubPublisher
	cache     *stubHistoryCache
	retriever *stubRetriever
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		sessions:  newFakeSessionStore(),
		messages:  newFakeMessageStore(),
		publisher: &stubPublisher{},
		cache:     &stubHistoryCache{},
		retriever: &stubRetriever{result: &ai.QueryResult{Answer: "the answer"}},
	}
	filter := NewCitationFilter(newFakeDocumentStore(), newFakeRegulationStore())
	f.svc = NewChatService(
		f.sessions, f.messages, f.publisher, f.cache, f.retriever, filter,
		"vs_mydocs", "vs_regs", 20,
	)
	return f
}

func TestChatAsk_HappyPath(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:        1,
		VectorIndexID: "vs_session",
		ExpiresAt:     time.Now().Add(time.Hour),
	})

	result, err := f.svc.Ask(context.Background(), AskInput{
		UserID:    1,
		SessionID: session.ID,
		Question:  "How much notice am I owed?",
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Answer)
	require.NotNil(t, result.Citations)
	require.Len(t, f.publisher.published, 2)
	assert.Equal(t, "user", f.publisher.published[0].Role)
	assert.Equal(t, "assistant", f.publisher.published[1].Role)
	assert.Equal(t, 1, f.cache.dirtyMarked)
	assert.Equal(t, 1, f.cache.deleted)

	// The retriever sees the session index, the shared persistent index,
	// and the public regulations index, each in its own scope.
	assert.Equal(t, "vs_session", f.retriever.lastIn.SessionIndexID)
	assert.Equal(t, []string{"vs_mydocs"}, f.retriever.lastIn.PrivateIndexIDs)
	assert.Equal(t, []string{"vs_regs"}, f.retriever.lastIn.PublicIndexIDs)
	assert.Equal(t, uint(1), f.retriever.lastIn.OwnerID)
	assert.Equal(t, session.ID, f.retriever.lastIn.SessionID)
}

func TestChatAsk_ExpiredSessionRejected(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, SessionID: session.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, f.publisher.published)
}

func TestChatAsk_ForeignSessionNotFound(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:    2,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, SessionID: session.ID, Question: "hi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestChatAsk_EmptyQuestionRejected(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	_, err := f.svc.Ask(context.Background(), AskInput{UserID: 1, SessionID: session.ID, Question: "   "})
	assert.ErrorIs(t, err, ErrQuestionEmpty)
}

func TestChatGetHistory_CacheHit(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	f.cache.hit = true
	f.cache.history = []model.Message{{SessionID: session.ID, Role: "user", Content: "cached"}}

	history, err := f.svc.GetHistory(context.Background(), 1, session.ID, 100)
	require.NoError(t, err)

	require.Len(t, history, 1)
	assert.Equal(t, "cached", history[0].Content)
}

func TestChatGetHistory_DirtyMarkerBypassesCache(t *testing.T) {
	f := newChatFixture()
	session := f.sessions.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	f.cache.hit = true
	f.cache.dirty = true
	f.cache.history = []model.Message{{Content: "stale"}}
	f.messages.messages[session.ID] = []model.Message{{Content: "fresh"}}

	history, err := f.svc.GetHistory(context.Background(), 1, session.ID, 100)
	require.NoError(t, err)

	require.Len(t, history, 1)
	assert.Equal(t, "fresh", history[0].Content)
	// While the marker stands the fresh read must not repopulate the cache.
	assert.Empty(t, f.cache.stored)
}
