package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workdocs-ai/internal/model"
)

type stubSessionCleaner struct {
	result   *CleanupResult
	docCount int
	err      error
	calls    int
}

func (s *stubSessionCleaner) CleanupSession(ctx context.Context, session *model.Session) (*CleanupResult, int, error) {
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.result, s.docCount, nil
}

func newSessionService(store *fakeSessionStore, cleaner *stubSessionCleaner) *SessionService {
	return newSessionServiceWithDocs(store, newFakeDocumentStore(), cleaner)
}

func newSessionServiceWithDocs(store *fakeSessionStore, docs *fakeDocumentStore, cleaner *stubSessionCleaner) *SessionService {
	return NewSessionService(store, docs, cleaner, time.Hour, 5*time.Minute, 4*time.Hour)
}

func TestSessionServiceStart_CreatesNewSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store, &stubSessionCleaner{})

	result, err := svc.Start(1, 0)
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.NotZero(t, result.Session.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.Session.ExpiresAt, 2*time.Second)
}

func TestSessionServiceStart_ReusesActiveSession(t *testing.T) {
	store := newFakeSessionStore()
	existing := store.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	svc := newSessionService(store, &stubSessionCleaner{})

	result, err := svc.Start(1, 30)
	require.NoError(t, err)

	assert.False(t, result.IsNew)
	assert.Equal(t, existing.ID, result.Session.ID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), result.Session.ExpiresAt, 2*time.Second)
	assert.Len(t, store.sessions, 1)
}

func TestSessionServiceStart_ReuseExtendsDocumentExpiry(t *testing.T) {
	store := newFakeSessionStore()
	docs := newFakeDocumentStore()
	session := store.add(&model.Session{
		UserID:        1,
		VectorIndexID: "vs_session",
		ExpiresAt:     time.Now().Add(2 * time.Minute),
	})
	doc := addSessionDoc(docs, session.ID, "payslip.pdf", session.ExpiresAt)
	svc := newSessionServiceWithDocs(store, docs, &stubSessionCleaner{})

	result, err := svc.Start(1, 90)
	require.NoError(t, err)
	require.False(t, result.IsNew)

	// The document's deadline moved with the session's.
	stored := docs.docs[doc.ID]
	require.NotNil(t, stored.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(90*time.Minute), *stored.ExpiresAt, 2*time.Second)

	// The sweep must not see documents of the still-active session even
	// after the original deadline passes.
	cleanup := NewCleanupService(docs, store, newFakeBlobStorage(), &fakeVectorIndex{}, testMyDocsIndexID)
	swept, count, err := cleanup.SweepExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, swept.Deleted.Database)
	assert.Contains(t, docs.docs, doc.ID)
}

func TestSessionServiceStart_ExpiredSessionNotReused(t *testing.T) {
	store := newFakeSessionStore()
	expired := store.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	svc := newSessionService(store, &stubSessionCleaner{})

	result, err := svc.Start(1, 0)
	require.NoError(t, err)

	assert.True(t, result.IsNew)
	assert.NotEqual(t, expired.ID, result.Session.ID)
}

func TestSessionServiceStart_TTLOutOfRange(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store, &stubSessionCleaner{})

	for _, ttl := range []int{1, 4, 241, 1000} {
		_, err := svc.Start(1, ttl)
		assert.ErrorIs(t, err, ErrTTLOutOfRange, "ttl %d", ttl)
	}
	// Rejected before any row was written.
	assert.Empty(t, store.sessions)
}

func TestSessionServiceStart_BoundaryTTLsAccepted(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store, &stubSessionCleaner{})

	_, err := svc.Start(1, 5)
	assert.NoError(t, err)
	_, err = svc.Start(2, 240)
	assert.NoError(t, err)
}

func TestSessionServiceGet_OwnerScoped(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	svc := newSessionService(store, &stubSessionCleaner{})

	got, err := svc.Get(session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	// A foreign user sees not-found, not forbidden.
	_, err = svc.Get(session.ID, 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Get(999, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionServiceEnd_TriggersCleanup(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add(&model.Session{
		UserID:    1,
		CreatedAt: time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	cleaner := &stubSessionCleaner{
		result:   &CleanupResult{Deleted: PhaseCounts{Storage: 2, VectorStore: 2, Database: 2}, Errors: []CleanupError{}},
		docCount: 2,
	}
	svc := newSessionService(store, cleaner)

	result, err := svc.End(context.Background(), session.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, session.ID, result.SessionID)
	assert.True(t, result.Cleanup.Queued)
	assert.Equal(t, 2, result.DocumentCount)
	assert.Equal(t, 1, cleaner.calls)
	assert.GreaterOrEqual(t, result.DurationSeconds, int64(599))

	// The session is stamped expired, not deleted.
	stored := store.sessions[session.ID]
	require.NotNil(t, stored)
	assert.False(t, stored.Active(time.Now().Add(time.Second)))
}

func TestSessionServiceEnd_IdempotentOnExpired(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add(&model.Session{
		UserID:    1,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	cleaner := &stubSessionCleaner{}
	svc := newSessionService(store, cleaner)

	result, err := svc.End(context.Background(), session.ID, 1)
	require.NoError(t, err)

	assert.False(t, result.Cleanup.Queued)
	assert.Nil(t, result.Cleanup.Result)
	assert.Zero(t, cleaner.calls)
}

func TestSessionServiceEnd_CleanupFailureDoesNotFailEnd(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	cleaner := &stubSessionCleaner{err: errors.New("index unreachable")}
	svc := newSessionService(store, cleaner)

	result, err := svc.End(context.Background(), session.ID, 1)
	require.NoError(t, err)

	assert.True(t, result.Cleanup.Queued)
	assert.Nil(t, result.Cleanup.Result)
	// The failure still reaches the client as a structured warning.
	assert.Contains(t, result.Cleanup.Error, "index unreachable")
	assert.False(t, store.sessions[session.ID].Active(time.Now().Add(time.Second)))
}

func TestSessionServiceEnd_SuccessfulCleanupHasNoError(t *testing.T) {
	store := newFakeSessionStore()
	session := store.add(&model.Session{
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	cleaner := &stubSessionCleaner{result: newCleanupResult()}
	svc := newSessionService(store, cleaner)

	result, err := svc.End(context.Background(), session.ID, 1)
	require.NoError(t, err)

	assert.True(t, result.Cleanup.Queued)
	assert.Empty(t, result.Cleanup.Error)
	assert.NotNil(t, result.Cleanup.Result)
}

func TestSessionServiceEnd_NotFound(t *testing.T) {
	svc := newSessionService(newFakeSessionStore(), &stubSessionCleaner{})

	_, err := svc.End(context.Background(), 42, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
