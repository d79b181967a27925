package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// Manager keeps the live feed sessions of this instance
type Manager struct {
	source   CandidateSource
	profiles ProfileReader
	swipes   SwipeRecorder
	metrics  *observability.Metrics
	opts     Options
	idleTTL  time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Sessions idle for longer than
// idleTTL are closed by Run.
func NewManager(source CandidateSource, profiles ProfileReader, swipes SwipeRecorder, metrics *observability.Metrics, opts Options, idleTTL time.Duration) *Manager {
	return &Manager{
		source:   source,
		profiles: profiles,
		swipes:   swipes,
		metrics:  metrics,
		opts:     opts,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session for uid and starts its first load
func (m *Manager) Open(ctx context.Context, uid, category string) (*Session, error) {
	if uid == "" {
		return nil, apperrors.NewUnauthorizedError("user id is required")
	}
	if category != "" && !entities.IsValidCategory(category) {
		return nil, apperrors.NewValidationError("unknown category: " + category)
	}

	session := NewSession(uuid.NewString(), uid, category, m.opts, m.source, m.profiles, m.swipes, m.metrics)

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	session.Open()
	observability.LoggerFromContext(ctx).Info().
		Str("session_id", session.ID()).
		Str("uid", uid).
		Str("category", category).
		Msg("feed session opened")
	return session, nil
}

// Get returns a session owned by uid
func (m *Manager) Get(id, uid string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || session.UserID() != uid {
		return nil, apperrors.NewNotFoundError("feed session not found")
	}
	return session, nil
}

// Close disposes a session owned by uid
func (m *Manager) Close(id, uid string) error {
	session, err := m.Get(id, uid)
	if err != nil {
		return err
	}
	m.remove(id)
	session.Close()
	return nil
}

// Len reports the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run closes idle sessions until ctx is done
func (m *Manager) Run(ctx context.Context) {
	if m.idleTTL <= 0 {
		return
	}
	interval := m.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				log.Info().Int("closed", n).Msg("closed idle feed sessions")
			}
		}
	}
}

// Sweep closes sessions idle since before now minus the idle TTL
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.idleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, session := range idle {
		session.Close()
	}
	return len(idle)
}

// Shutdown closes every session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
