package app

import (
	"context"
	"errors"
	"log"
	"time"

	"workdocs-ai/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrTTLOutOfRange   = errors.New("ttl_minutes out of range")
)

// SessionCleaner is the cleanup entry point End invokes; failures there
// must never fail the End call itself.
type SessionCleaner interface {
	CleanupSession(ctx context.Context, session *model.Session) (*CleanupResult, int, error)
}

// SessionService owns the session TTL lifecycle: bounded-TTL start with
// single-active-session reuse, owner-scoped lookup, idempotent end.
type SessionService struct {
	sessions   SessionStore
	docs       DocumentStore
	cleaner    SessionCleaner
	defaultTTL time.Duration
	minTTL     time.Duration
	maxTTL     time.Duration
}

func NewSessionService(sessions SessionStore, docs DocumentStore, cleaner SessionCleaner, defaultTTL, minTTL, maxTTL time.Duration) *SessionService {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &SessionService{
		sessions:   sessions,
		docs:       docs,
		cleaner:    cleaner,
		defaultTTL: defaultTTL,
		minTTL:     minTTL,
		maxTTL:     maxTTL,
	}
}

type StartResult struct {
	Session *model.Session
	IsNew   bool
}

// CleanupOutcome reports whether End triggered cleanup and, when it did,
// what the orchestrator managed to remove. Error is set when cleanup
// could not run at all, so the client still gets a warning to surface.
type CleanupOutcome struct {
	Queued bool           `json:"queued"`
	Result *CleanupResult `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type EndSessionResult struct {
	SessionID       uint           `json:"session_id"`
	DurationSeconds int64          `json:"duration_seconds"`
	DocumentCount   int            `json:"document_count"`
	Cleanup         CleanupOutcome `json:"cleanup"`
}

// Start reuses the caller's active session by extending its expiry, or
// creates a new one. ttlMinutes 0 selects the default; out-of-range
// values are rejected before any row is written.
func (s *SessionService) Start(userID uint, ttlMinutes int) (*StartResult, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	ttl := s.defaultTTL
	if ttlMinutes != 0 {
		candidate := time.Duration(ttlMinutes) * time.Minute
		if candidate < s.minTTL || candidate > s.maxTTL {
			return nil, ErrTTLOutOfRange
		}
		ttl = candidate
	}

	now := time.Now()
	expiresAt := now.Add(ttl)

	existing, err := s.sessions.ExtendActive(userID, now, expiresAt)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Ephemeral documents expire with their session; when the
		// session's deadline moves, theirs must move with it or the
		// sweep would reclaim them mid-conversation.
		if err := s.docs.ExtendSessionExpiry(existing.ID, expiresAt); err != nil {
			return nil, err
		}
		return &StartResult{Session: existing, IsNew: false}, nil
	}

	session := &model.Session{
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}
	return &StartResult{Session: session, IsNew: true}, nil
}

// Get looks a session up scoped to its owner. Foreign sessions are
// indistinguishable from absent ones.
func (s *SessionService) Get(sessionID, userID uint) (*model.Session, error) {
	if sessionID == 0 || userID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// End terminates the session and cascades cleanup of its ephemeral
// documents. Idempotent: an already-expired session returns success with
// cleanup.queued=false and no side effects. Cleanup failures are
// reported in the result, never as an error; the session is terminated
// the moment its expiry is stamped.
func (s *SessionService) End(ctx context.Context, sessionID, userID uint) (*EndSessionResult, error) {
	session, err := s.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &EndSessionResult{
		SessionID:       session.ID,
		DurationSeconds: int64(now.Sub(session.CreatedAt).Seconds()),
	}

	if !session.Active(now) {
		result.Cleanup = CleanupOutcome{Queued: false}
		return result, nil
	}

	if err := s.sessions.SetExpiresAt(session.ID, now); err != nil {
		return nil, err
	}

	result.Cleanup = CleanupOutcome{Queued: true}
	cleanup, docCount, err := s.cleaner.CleanupSession(ctx, session)
	if err != nil {
		log.Printf("session %d cleanup failed: %v", session.ID, err)
		result.Cleanup.Error = err.Error()
		return result, nil
	}
	result.DocumentCount = docCount
	result.Cleanup.Result = cleanup
	return result, nil
}
