// Package session owns the per-user state of a running service: the entry pipeline, its
// offline queue, the connectivity watcher and the maintenance guard.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/maintenance"
	"github.com/echovault/echovault/internal/offline"
	"github.com/echovault/echovault/internal/pipeline"
)

// Session is one user's working context.
type Session struct {
	UserID      string
	Pipeline    *pipeline.Pipeline
	Queue       *offline.Queue
	Maintenance *maintenance.Guard
	Watcher     *offline.Watcher
}

// Config wires sessions to shared collaborators.
type Config struct {
	Pipeline pipeline.Config
	// Deps are copied into every session's pipeline; Queue is replaced per session.
	Deps pipeline.Deps
	// Scheduler may be nil, in which case no maintenance runs.
	Scheduler *maintenance.Scheduler
	// WatchInterval is how often connectivity is sampled. Zero disables the watcher loop.
	WatchInterval time.Duration
}

// Registry lazily creates sessions and keeps them until Close.
type Registry struct {
	cfg Config
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewRegistry(cfg Config, log zerolog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:      cfg,
		log:      log.With().Str("component", "session").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[string]*Session{},
	}
}

// Get returns the session for userID, creating it on first use. Creation starts the
// connectivity watcher and the session's first maintenance epoch.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		return s
	}
	deps := r.cfg.Deps
	deps.Queue = offline.NewQueue()
	p := pipeline.New(userID, r.cfg.Pipeline, deps)
	s := &Session{
		UserID:      userID,
		Pipeline:    p,
		Queue:       deps.Queue,
		Maintenance: maintenance.NewGuard(),
	}
	if deps.Connectivity != nil {
		s.Watcher = offline.NewWatcher(s.Queue, p, deps.Connectivity, r.log)
	}
	r.sessions[userID] = s
	r.mu.Unlock()

	if s.Watcher != nil && r.cfg.WatchInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			s.Watcher.Run(r.ctx, r.cfg.WatchInterval)
		}()
	}
	if r.cfg.Scheduler != nil {
		r.cfg.Scheduler.StartSession(userID, s.Maintenance)
	}
	r.log.Info().Str("user_id", userID).Msg("session started")
	return s
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every watcher and waits for in-flight enrichment to settle.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Pipeline.Wait()
		if r.cfg.Scheduler != nil {
			r.cfg.Scheduler.EndSession(s.UserID)
		}
	}
}
