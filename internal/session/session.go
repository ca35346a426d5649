// Package session keeps one what-if simulator per browser or CLI session.
// Sessions live only in process memory and disappear when they expire or
// are pushed out of the registry by newer ones.
package session

import (
	"log/slog"
	"sync"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/ledger"

	"github.com/google/uuid"
)

// Session guards a simulator, which is not safe for concurrent use.
type Session struct {
	ID string

	mu  sync.Mutex
	sim *ledger.Simulator
}

func (s *Session) Add(in core.EntryInput) (core.SimulationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Add(in)
}

func (s *Session) Items() []core.SimulationItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Items()
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Len()
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim.Clear()
}

func (s *Session) Project(real ledger.Aggregates) ledger.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Project(real)
}

// With runs fn while holding the session lock.
func (s *Session) With(fn func(sim *ledger.Simulator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.sim)
}

// Registry maps session IDs to sessions.
type Registry struct {
	sessions *cache.LRUCache[*Session]
	policy   ledger.ClassificationPolicy
	logger   *slog.Logger
}

// NewRegistry holds at most maxSessions sessions, each expiring after ttl
// without use.
func NewRegistry(maxSessions int, ttl time.Duration, policy ledger.ClassificationPolicy, logger *slog.Logger, opts ...cache.Option[*Session]) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{policy: policy, logger: logger.With("component", "session")}
	opts = append([]cache.Option[*Session]{
		cache.WithSlidingExpiry[*Session](),
		cache.WithEvictHook(func(id string, s *Session) {
			r.logger.Debug("Simulation session discarded", "session_id", id, "items", s.Len())
		}),
	}, opts...)
	r.sessions = cache.NewLRUCache(maxSessions, ttl, opts...)
	return r
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return r.sessions.Get(id)
}

// Create starts an empty session under a fresh ID.
func (r *Registry) Create() *Session {
	s := &Session{ID: uuid.NewString(), sim: ledger.NewSimulator(r.policy)}
	r.sessions.Set(s.ID, s)
	return s
}

// Resolve returns the session for id, creating a new one when id is
// unknown or expired. created reports whether the caller must hand the
// new ID back to the client.
func (r *Registry) Resolve(id string) (s *Session, created bool) {
	if s, ok := r.Get(id); ok {
		return s, false
	}
	return r.Create(), true
}

func (r *Registry) Drop(id string) {
	r.sessions.Delete(id)
}

func (r *Registry) Size() int { return r.sessions.Size() }

// CleanExpired lets the cache janitor sweep the registry.
func (r *Registry) CleanExpired() int { return r.sessions.CleanExpired() }
