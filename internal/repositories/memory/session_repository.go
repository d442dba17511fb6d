package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/blkd-app/wallet-api/internal/checkout"
)

// SessionRepository is an in-memory checkout session store. Sessions are
// stored by reference; the single-writer contract of checkout.Session makes
// copy-on-read unnecessary.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*checkout.Session
}

// NewSessionRepository builds an empty session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*checkout.Session)}
}

// Get returns the session with the given id.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*checkout.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[strings.TrimSpace(sessionID)]
	if !ok {
		return nil, notFoundError("sessions.Get", "session %q not found", sessionID)
	}
	return session, nil
}

// Save stores the session under its id.
func (r *SessionRepository) Save(ctx context.Context, session *checkout.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil || strings.TrimSpace(session.ID()) == "" {
		return conflictError("sessions.Save", "session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = session
	return nil
}

// Delete removes the session if present. Deleting a missing session is a no-op.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, strings.TrimSpace(sessionID))
	return nil
}
