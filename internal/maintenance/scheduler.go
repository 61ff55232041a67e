package maintenance

import (
	"context"
	"sync"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/echovault/echovault/internal/events"
	"github.com/echovault/echovault/internal/model"
)

// Scheduler runs the retrofit and backfill jobs for active sessions: once when a session
// starts, then again on every cron tick.
type Scheduler struct {
	retrofit *SchemaRetrofit
	backfill *EmbeddingBackfill
	events   events.Publisher
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Guard
	cron     *rcron.Cron

	// base bounds every job; Stop cancels it.
	base   context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewScheduler(r *SchemaRetrofit, b *EmbeddingBackfill, pub events.Publisher, log zerolog.Logger) *Scheduler {
	if pub == nil {
		pub = events.Discard{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		retrofit: r,
		backfill: b,
		events:   pub,
		log:      log.With().Str("component", "maintenance").Logger(),
		sessions: map[string]*Guard{},
		base:     base,
		cancel:   cancel,
	}
}

// StartSession registers the session for scheduled epochs and starts every job that has not
// yet run in the session's current epoch. Jobs run in the background and outlive the
// caller; Stop cancels them.
func (s *Scheduler) StartSession(userID string, g *Guard) {
	s.mu.Lock()
	s.sessions[userID] = g
	s.mu.Unlock()
	s.launch(userID, g)
}

// EndSession stops scheduling epochs for userID. Running jobs finish normally.
func (s *Scheduler) EndSession(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// RunNow opens a new epoch for the session and starts its jobs. It returns false when a job
// of that session is still running.
func (s *Scheduler) RunNow(userID string, g *Guard) bool {
	if !g.NewEpoch() {
		return false
	}
	s.StartSession(userID, g)
	return true
}

func (s *Scheduler) launch(userID string, g *Guard) {
	ctx := s.base
	if s.retrofit != nil && g.TryStart(JobRetrofit) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer g.Finish(JobRetrofit)
			progress := func(p model.RetrofitProgress) {
				g.setProgress(p)
				s.events.Publish(events.Event{Kind: events.EventRetrofitProgress, UserID: userID, Progress: &p})
			}
			if _, err := s.retrofit.Run(ctx, userID, progress); err != nil {
				s.log.Error().Err(err).Str("user_id", userID).Msg("retrofit aborted")
			}
		}()
	}
	if s.backfill != nil && g.TryStart(JobBackfill) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer g.Finish(JobBackfill)
			if _, err := s.backfill.Run(ctx, userID); err != nil {
				s.log.Error().Err(err).Str("user_id", userID).Msg("embedding backfill aborted")
			}
		}()
	}
}

// Tick opens a new epoch for every registered session whose jobs are idle.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	sessions := make(map[string]*Guard, len(s.sessions))
	for id, g := range s.sessions {
		sessions[id] = g
	}
	s.mu.Unlock()

	for userID, g := range sessions {
		if !g.NewEpoch() {
			s.log.Debug().Str("user_id", userID).Msg("maintenance still running; skipping epoch")
			continue
		}
		s.launch(userID, g)
	}
}

// Schedule starts the cron loop with the given spec (standard cron syntax or descriptors
// such as "@every 6h"). The loop stops when ctx is done or Stop is called.
func (s *Scheduler) Schedule(ctx context.Context, spec string) error {
	c := rcron.New()
	if _, err := c.AddFunc(spec, s.Tick); err != nil {
		return err
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.log.Info().Str("schedule", spec).Msg("maintenance schedule started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop, cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every launched job has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }
