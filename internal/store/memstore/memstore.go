// Package memstore is an in-process store.Store used by tests and the memory driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echovault/echovault/internal/model"
	"github.com/echovault/echovault/internal/store"
)

// Store keeps entries in a map and pushes snapshots to subscribers on every mutation.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*model.Entry // by entry id
	subs    map[*subscription]struct{}
	now     func() time.Time
	offline bool
}

type subscription struct {
	req model.ListEntriesRequest
	ch  chan []*model.Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries: map[string]*model.Entry{},
		subs:    map[*subscription]struct{}{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Entries() store.Entries { return (*entries)(s) }

// SetOffline makes HealthPing fail, simulating lost connectivity.
func (s *Store) SetOffline(off bool) {
	s.mu.Lock()
	s.offline = off
	s.mu.Unlock()
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline {
		return fmt.Errorf("memstore: offline")
	}
	return nil
}

type entries Store

func clone(e *model.Entry) *model.Entry {
	c := *e
	c.Embedding = append([]float32(nil), e.Embedding...)
	c.Tags = append([]string{}, e.Tags...)
	c.ExtractedTasks = append([]string(nil), e.ExtractedTasks...)
	c.FutureMentions = append([]model.FutureMention(nil), e.FutureMentions...)
	if e.MoodScore != nil {
		v := *e.MoodScore
		c.MoodScore = &v
	}
	return &c
}

func (s *entries) Create(ctx context.Context, e *model.Entry) (*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	c := clone(e)
	c.ID = uuid.New().String()
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.EffectiveDate.IsZero() {
		c.EffectiveDate = c.CreatedAt
	}
	c.UpdatedAt = now

	s.mu.Lock()
	s.entries[c.ID] = c
	s.mu.Unlock()
	(*Store)(s).notify(c.UserID)
	return clone(c), nil
}

func (s *entries) Update(ctx context.Context, userID, entryID string, patch model.EntryPatch) (*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		s.mu.Unlock()
		return nil, fmt.Errorf("entry %s: %w", entryID, model.ErrNotFound)
	}
	patch.Apply(e)
	e.UpdatedAt = s.now()
	out := clone(e)
	s.mu.Unlock()
	(*Store)(s).notify(userID)
	return out, nil
}

func (s *entries) GetByID(ctx context.Context, userID, entryID string) (*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("entry %s: %w", entryID, model.ErrNotFound)
	}
	return clone(e), nil
}

func (s *entries) List(ctx context.Context, req model.ListEntriesRequest) ([]*model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*Store)(s).listLocked(req), nil
}

func (s *Store) listLocked(req model.ListEntriesRequest) []*model.Entry {
	var out []*model.Entry
	for _, e := range s.entries {
		if e.UserID != req.UserID {
			continue
		}
		if req.Before != nil && !e.CreatedAt.Before(*req.Before) {
			continue
		}
		if req.After != nil && !e.CreatedAt.After(*req.After) {
			continue
		}
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out
}

func (s *entries) Subscribe(ctx context.Context, req model.ListEntriesRequest) (<-chan []*model.Entry, error) {
	st := (*Store)(s)
	sub := &subscription{req: req, ch: make(chan []*model.Entry, 1)}

	st.mu.Lock()
	st.subs[sub] = struct{}{}
	sub.ch <- st.listLocked(req)
	st.mu.Unlock()

	go func() {
		<-ctx.Done()
		st.mu.Lock()
		delete(st.subs, sub)
		close(sub.ch)
		st.mu.Unlock()
	}()
	return sub.ch, nil
}

// notify replaces any undelivered snapshot with the latest one so slow readers never block writers.
func (s *Store) notify(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if sub.req.UserID != userID {
			continue
		}
		snap := s.listLocked(sub.req)
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}
