// Package offline buffers entries captured while the store is unreachable and replays them
// once connectivity returns.
package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/echovault/echovault/internal/model"
)

// ErrDrainInProgress is returned when Drain is called while another drain is running.
var ErrDrainInProgress = errors.New("offline: drain already in progress")

// Replayer persists one queued entry and starts its enrichment.
type Replayer interface {
	Replay(ctx context.Context, item model.OfflineQueueItem) (entryID string, err error)
}

// Queue is a FIFO of entries that have cleared gating but are not yet persisted.
// It lives in process memory only.
type Queue struct {
	mu       sync.Mutex
	items    []model.OfflineQueueItem
	draining bool
}

func NewQueue() *Queue { return &Queue{} }

// Enqueue appends e and returns the queued item with its local id.
func (q *Queue) Enqueue(e model.Entry) model.OfflineQueueItem {
	item := model.OfflineQueueItem{OfflineID: "offline-" + uuid.New().String(), Entry: e}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return item
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a snapshot of the queue, oldest first.
func (q *Queue) Items() []model.OfflineQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.OfflineQueueItem(nil), q.items...)
}

// DrainResult summarizes one Drain call.
type DrainResult struct {
	Replayed  []string // store ids, in replay order
	Remaining int
}

// Drain replays items one at a time in FIFO order. An item is removed only after Replay
// succeeds; the first failure stops the drain and leaves it and everything behind it queued.
func (q *Queue) Drain(ctx context.Context, r Replayer) (DrainResult, error) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return DrainResult{}, ErrDrainInProgress
	}
	q.draining = true
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	var res DrainResult
	for {
		if err := ctx.Err(); err != nil {
			res.Remaining = q.Len()
			return res, err
		}
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return res, nil
		}
		head := q.items[0]
		q.mu.Unlock()

		id, err := r.Replay(ctx, head)
		if err != nil {
			res.Remaining = q.Len()
			return res, fmt.Errorf("replay %s: %w", head.OfflineID, err)
		}
		q.remove(head.OfflineID)
		res.Replayed = append(res.Replayed, id)
	}
}

func (q *Queue) remove(offlineID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.OfflineID == offlineID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}
