package telemetry

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SessionStore yields the identifier of the current session, creating it
// on first use.
type SessionStore interface {
	SessionID(ctx context.Context) (string, error)
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// MemorySessionStore keeps the session id for the life of the process.
type MemorySessionStore struct {
	once sync.Once
	id   string
}

func (m *MemorySessionStore) SessionID(context.Context) (string, error) {
	m.once.Do(func() { m.id = NewSessionID() })
	return m.id, nil
}
