// Package session keeps one shift engine per interactive analysis,
// addressed by an opaque ID and evicted after a period of inactivity.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"github.com/alexshd/tts"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session owns one engine. All engine access goes through Do, which
// serialises callers.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	engine *tts.Engine
}

// Do runs fn with exclusive access to the session's engine.
func (s *Session) Do(fn func(e *tts.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Options bounds the store.
type Options struct {
	MaxSessions int           // <= 0 means 1000
	TTL         time.Duration // idle time before eviction; <= 0 means 30m
}

// Store is a concurrency-safe, size- and idle-bounded set of sessions.
type Store struct {
	cache  *otter.Cache[string, *Session]
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore(opts Options, logger *slog.Logger) *Store {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{logger: logger, now: time.Now}
	s.cache = otter.Must(&otter.Options[string, *Session]{
		MaximumSize:      opts.MaxSessions,
		ExpiryCalculator: otter.ExpiryAccessing[string, *Session](opts.TTL),
		OnDeletion: func(e otter.DeletionEvent[string, *Session]) {
			s.logger.Debug("session removed", "id", e.Key, "cause", e.Cause)
		},
	})
	return s
}

// Create starts a session for ds with reference temperature tref.
func (s *Store) Create(ds *tts.DataSet, tref float64) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		engine:    tts.NewEngine(ds, tref),
	}
	s.cache.Set(sess.ID, sess)
	s.logger.Info("session created",
		"id", sess.ID,
		"temperatures", ds.Len(),
		"reference", tref)
	return sess
}

// Get returns the session for id and refreshes its idle timer.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.cache.GetIfPresent(id)
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes the session. It reports whether it existed.
func (s *Store) Delete(id string) bool {
	_, ok := s.cache.Invalidate(id)
	return ok
}

// Len returns the approximate number of live sessions.
func (s *Store) Len() int {
	return s.cache.EstimatedSize()
}
